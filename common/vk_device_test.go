package common

import (
	"testing"

	"offscreen_triangle/vktest"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

func newTestDevice(t *testing.T, drv *vktest.Driver) *Device {
	t.Helper()
	dc, err := AcquireDevice(drv, nil, 0)
	if err != nil {
		t.Fatalf("Failed to acquire device: %v", err)
	}
	return dc
}

func expectClean(t *testing.T, drv *vktest.Driver) {
	t.Helper()
	if leaks := drv.Leaks(); len(leaks) > 0 {
		t.Errorf("Objects left alive: %v", leaks)
	}
	if len(drv.Violations) > 0 {
		t.Errorf("Usage violations: %v", drv.Violations)
	}
}

func TestAcquireDeviceSharedFamily(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	if !dc.SharedFamily() {
		t.Errorf("Single family device should share graphics and transfer family")
	}
	if len(dc.Pools) != 1 {
		t.Errorf("Expected one command pool, got %d", len(dc.Pools))
	}
	if dc.GraphicsPool() != dc.TransferPool() {
		t.Errorf("Graphics and transfer pool should be identical")
	}
	if dc.GraphicsQ == nil || dc.GraphicsQ != dc.TransferQ {
		t.Errorf("Graphics and transfer queue should be the same queue")
	}
	dc.Destroy()
	dc.Destroy()
	if n := drv.CallCount("DestroyDevice"); n != 1 {
		t.Errorf("Device destroyed %d times", n)
	}
	expectClean(t, drv)
}

func TestAcquireDeviceSeparateFamilies(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Devices[0].QueueFamilies = []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), QueueCount: 1},
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 1},
	}
	dc := newTestDevice(t, drv)
	if dc.SharedFamily() {
		t.Errorf("Expected separate graphics and transfer families")
	}
	if len(dc.Pools) != 2 {
		t.Errorf("Expected one command pool per family, got %d", len(dc.Pools))
	}
	if dc.GraphicsQ == dc.TransferQ {
		t.Errorf("Expected distinct queues")
	}
	dc.Destroy()
	expectClean(t, drv)
}

func TestAcquireDeviceOutOfRange(t *testing.T) {
	drv := vktest.NewDriver()
	for _, idx := range []int{-1, 1, 7} {
		_, err := AcquireDevice(drv, nil, idx)
		if errors.Cause(err) != ErrNoSuitableDevice {
			t.Errorf("Device index %d: expected ErrNoSuitableDevice, got %v", idx, err)
		}
	}
	if n := drv.CallCount("CreateDevice"); n != 0 {
		t.Errorf("No logical device should be created, got %d", n)
	}
}

func TestAcquireDeviceWithoutGraphics(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Devices[0].QueueFamilies = []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueComputeBit | vk.QueueTransferBit), QueueCount: 4},
	}
	_, err := AcquireDevice(drv, nil, 0)
	if errors.Cause(err) != ErrNoSuitableDevice {
		t.Errorf("Expected ErrNoSuitableDevice, got %v", err)
	}
}

func TestAcquireDevicePoolFailureReleasesDevice(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Fail["CreateCommandPool"] = errors.New("out of host memory")
	if _, err := AcquireDevice(drv, nil, 0); err == nil {
		t.Fatalf("Expected pool creation failure to surface")
	}
	if drv.Created(vktest.KindDevice) != 1 {
		t.Errorf("Expected the logical device to be created once")
	}
	expectClean(t, drv)
}

func TestTableStrings(t *testing.T) {
	drv := vktest.NewDriver()
	devices, err := drv.EnumeratePhysicalDevices(nil)
	if err != nil {
		t.Fatalf("Enumeration failed: %v", err)
	}
	if s := TableStringPhysicalDevices(drv, devices); len(s) == 0 {
		t.Errorf("Device table is empty")
	}
	if s := TableStringMemoryTypes(drv.Devices[0].Memory); len(s) == 0 {
		t.Errorf("Memory type table is empty")
	}
}
