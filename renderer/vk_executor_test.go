package renderer

import (
	"testing"

	"offscreen_triangle/common"
	"offscreen_triangle/vktest"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

func newTestDevice(t *testing.T, drv *vktest.Driver) *common.Device {
	t.Helper()
	dc, err := common.AcquireDevice(drv, nil, 0)
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

func expectExecutionReleased(t *testing.T, drv *vktest.Driver) {
	t.Helper()
	if n := drv.Live(vktest.KindFence); n != 0 {
		t.Errorf("%d fences left alive", n)
	}
	if n := drv.Live(vktest.KindCommandBuffer); n != 0 {
		t.Errorf("%d command buffers left alive", n)
	}
}

// expectExecutionKept checks that a timed out execution keeps its command buffer and fence until the device is
// idle, and that Reclaim releases both afterwards.
func expectExecutionKept(t *testing.T, drv *vktest.Driver, dc *common.Device, ex *Executor) {
	t.Helper()
	if drv.Live(vktest.KindFence) != 1 || drv.Live(vktest.KindCommandBuffer) != 1 {
		t.Errorf("Timed out execution released early: %d fences, %d command buffers",
			drv.Live(vktest.KindFence), drv.Live(vktest.KindCommandBuffer))
	}
	if err := dc.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
	ex.Reclaim()
	expectExecutionReleased(t, drv)
	if len(drv.Violations) > 0 {
		t.Errorf("Usage violations: %v", drv.Violations)
	}
}

func TestRunOnce(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	defer dc.Destroy()

	ex := NewExecutor(dc, DEFAULT_FENCE_TIMEOUT)
	calls := 0
	err := ex.RunOnce(dc.GraphicsPool(), dc.GraphicsQ, func(cb vk.CommandBuffer) {
		if cb == nil {
			t.Errorf("Recorder got a nil command buffer")
		}
		calls++
	})
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Recorder called %d times", calls)
	}
	if drv.CallCount("QueueSubmit") != 1 || drv.CallCount("WaitForFences") != 1 {
		t.Errorf("Expected one submission and one wait, calls: %v", drv.Calls)
	}
	expectExecutionReleased(t, drv)
}

func TestRunOnceNeverSignaledFence(t *testing.T) {
	drv := vktest.NewDriver()
	drv.NeverSignal = true
	dc := newTestDevice(t, drv)
	defer dc.Destroy()

	ex := NewExecutor(dc, DEFAULT_FENCE_TIMEOUT)
	err := ex.RunOnce(dc.GraphicsPool(), dc.GraphicsQ, func(vk.CommandBuffer) {})
	if errors.Cause(err) != ErrFenceTimeout {
		t.Errorf("Expected ErrFenceTimeout, got %v", err)
	}
	if drv.Pending() != 1 {
		t.Errorf("Expected the submission to stay pending, got %d pending", drv.Pending())
	}
	expectExecutionKept(t, drv, dc, ex)
}

func TestRunOnceZeroTimeout(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	defer dc.Destroy()

	ex := NewExecutor(dc, 0)
	err := ex.RunOnce(dc.GraphicsPool(), dc.GraphicsQ, func(vk.CommandBuffer) {})
	if errors.Cause(err) != ErrFenceTimeout {
		t.Errorf("Expected ErrFenceTimeout for a zero timeout, got %v", err)
	}
	expectExecutionKept(t, drv, dc, ex)
}

func TestRunOnceSubmitFailure(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Fail["QueueSubmit"] = errors.New("device lost")
	dc := newTestDevice(t, drv)
	defer dc.Destroy()

	err := NewExecutor(dc, DEFAULT_FENCE_TIMEOUT).RunOnce(dc.GraphicsPool(), dc.GraphicsQ, func(vk.CommandBuffer) {})
	if err == nil {
		t.Fatalf("Expected submit failure to surface")
	}
	if errors.Cause(err) == ErrFenceTimeout {
		t.Errorf("Submit failure reported as timeout")
	}
	if drv.CallCount("WaitForFences") != 0 {
		t.Errorf("Should not wait on a fence that was never submitted")
	}
	expectExecutionReleased(t, drv)
}

func TestReclaimWithoutAbandonedExecutions(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	defer dc.Destroy()

	ex := NewExecutor(dc, DEFAULT_FENCE_TIMEOUT)
	if err := ex.RunOnce(dc.GraphicsPool(), dc.GraphicsQ, func(vk.CommandBuffer) {}); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	calls := len(drv.Calls)
	ex.Reclaim()
	if len(drv.Calls) != calls {
		t.Errorf("Reclaim released something after a successful execution: %v", drv.Calls[calls:])
	}
}
