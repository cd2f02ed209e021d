package common

import (
	"bytes"
	"log"
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestTeardownReleasesInReverse(t *testing.T) {
	var td Teardown
	var released []string
	for _, name := range []string{"device", "buffer", "image"} {
		name := name
		td.Push(name, func() { released = append(released, name) })
	}
	if td.Len() != 3 {
		t.Errorf("Expected 3 pending steps, got %d", td.Len())
	}
	if names := td.names(); !reflect.DeepEqual(names, []string{"image", "buffer", "device"}) {
		t.Errorf("Unexpected release order: %v", names)
	}
	td.Release()
	if !reflect.DeepEqual(released, []string{"image", "buffer", "device"}) {
		t.Errorf("Released in wrong order: %v", released)
	}
	td.Release()
	if len(released) != 3 {
		t.Errorf("Second release should be a no-op, released: %v", released)
	}
	if td.Len() != 0 {
		t.Errorf("Teardown should be empty after release, has %d steps", td.Len())
	}
}

func TestTeardownLogsPendingSteps(t *testing.T) {
	var out bytes.Buffer
	log.SetOutput(&out)
	defer log.SetOutput(os.Stderr)

	var td Teardown
	td.Release()
	if out.Len() != 0 {
		t.Errorf("Empty teardown should not log, got %q", out.String())
	}
	td.Push("device", func() {})
	td.Push("staging buffer", func() {})
	td.Release()
	if !strings.Contains(out.String(), "Releasing staging buffer, device") {
		t.Errorf("Expected pending steps in release order, got %q", out.String())
	}
}
