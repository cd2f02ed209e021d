package renderer

import (
	"log"
	"time"

	"offscreen_triangle/common"

	vk "github.com/goki/vulkan"
	"github.com/loov/hrtime"
	"github.com/pkg/errors"
)

// DEFAULT_FENCE_TIMEOUT bounds every wait for submitted work, in nanoseconds.
const DEFAULT_FENCE_TIMEOUT uint64 = 100000000000

// ErrFenceTimeout is returned when submitted work did not complete within the executor's timeout.
var ErrFenceTimeout = errors.New("fence wait timed out")

// Recorder appends commands to a command buffer that is in the recording state.
type Recorder func(cb vk.CommandBuffer)

// Executor runs recorded work synchronously. Every call owns a fresh command buffer and fence. Both are gone when
// RunOnce returns, unless the wait for the fence failed: the submission may then still be pending and both are
// kept until Reclaim.
type Executor struct {
	drv     common.Driver
	device  vk.Device
	Timeout uint64

	executions int
	abandoned  []execution
}

type execution struct {
	pool  vk.CommandPool
	cb    vk.CommandBuffer
	fence vk.Fence
}

func NewExecutor(dc *common.Device, timeout uint64) *Executor {
	return &Executor{drv: dc.Driver(), device: dc.D, Timeout: timeout}
}

// RunOnce allocates a primary command buffer from pool, lets record fill it, submits it to queue and blocks until
// the fence signals or Timeout elapsed.
func (e *Executor) RunOnce(pool vk.CommandPool, queue vk.Queue, record Recorder) error {
	start := hrtime.Now()
	e.executions++

	cb, err := common.VKSAllocatePrimaryCommandBuffer(e.drv, e.device, pool)
	if err != nil {
		return errors.Wrap(err, "failed to allocate command buffer")
	}
	pending := false
	defer func() {
		if !pending {
			e.drv.FreeCommandBuffers(e.device, pool, []vk.CommandBuffer{cb})
		}
	}()

	beginInfo := vk.CommandBufferBeginInfo{
		SType:            vk.StructureTypeCommandBufferBeginInfo,
		PNext:            nil,
		Flags:            vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
		PInheritanceInfo: nil,
	}
	if err := e.drv.BeginCommandBuffer(cb, &beginInfo); err != nil {
		return errors.Wrap(err, "failed to begin recording command buffer")
	}
	record(cb)
	if err := e.drv.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "failed to record command buffer")
	}

	fence, err := common.VKSCreateUnsignaledFence(e.drv, e.device)
	if err != nil {
		return errors.Wrap(err, "failed to create fence")
	}
	defer func() {
		if !pending {
			e.drv.DestroyFence(e.device, fence)
		}
	}()

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                nil,
		WaitSemaphoreCount:   0,
		PWaitSemaphores:      nil,
		PWaitDstStageMask:    nil,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 0,
		PSignalSemaphores:    nil,
	}
	if err := e.drv.QueueSubmit(queue, []vk.SubmitInfo{submitInfo}, fence); err != nil {
		return errors.Wrap(err, "failed to submit command buffer")
	}

	res := e.drv.WaitForFences(e.device, []vk.Fence{fence}, true, e.Timeout)
	if res != vk.Success {
		pending = true
		e.abandoned = append(e.abandoned, execution{pool: pool, cb: cb, fence: fence})
	}
	if res == vk.Timeout {
		return errors.Wrapf(ErrFenceTimeout, "execution %d not finished after %v", e.executions, time.Duration(e.Timeout))
	}
	if err := common.VkResultError("vkWaitForFences", res); err != nil {
		return err
	}
	log.Printf("Execution %d completed in %v", e.executions, hrtime.Now()-start)
	return nil
}

// Reclaim releases the command buffers and fences of executions whose wait failed. The device has to be idle.
func (e *Executor) Reclaim() {
	for _, ex := range e.abandoned {
		e.drv.DestroyFence(e.device, ex.fence)
		e.drv.FreeCommandBuffers(e.device, ex.pool, []vk.CommandBuffer{ex.cb})
	}
	if len(e.abandoned) > 0 {
		log.Printf("Reclaimed %d unfinished execution(s)", len(e.abandoned))
	}
	e.abandoned = nil
}
