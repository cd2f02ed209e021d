package renderer

import (
	"offscreen_triangle/common"

	vk "github.com/goki/vulkan"
)

// Recorders for the three submissions of a frame plus the upload read back. They only append commands, the
// Executor owns begin, end and submission.

// RecordUpdateBuffer writes data inline into dst. Vulkan limits inline updates to 65536 bytes in multiples of 4.
func RecordUpdateBuffer(drv common.Driver, dst vk.Buffer, offset vk.DeviceSize, data []byte) Recorder {
	return func(cb vk.CommandBuffer) {
		drv.CmdUpdateBuffer(cb, dst, offset, data)
	}
}

// RecordCopyBuffer copies the first size bytes of src to the start of dst.
func RecordCopyBuffer(drv common.Driver, src vk.Buffer, dst vk.Buffer, size vk.DeviceSize) Recorder {
	return func(cb vk.CommandBuffer) {
		copyRegions := []vk.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      size,
			},
		}
		drv.CmdCopyBuffer(cb, src, dst, copyRegions)
	}
}

// RecordDraw clears the target to clearColor and draws the three vertices found at the start of vbo.
func RecordDraw(drv common.Driver, target *OffscreenTarget, pipeline *Pipeline, vbo vk.Buffer, clearColor [4]float32) Recorder {
	return func(cb vk.CommandBuffer) {
		renderArea := vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: target.Extent,
		}
		clearValues := []vk.ClearValue{
			vk.NewClearValue(clearColor[:]),
		}
		renderPassInfo := vk.RenderPassBeginInfo{
			SType:           vk.StructureTypeRenderPassBeginInfo,
			PNext:           nil,
			RenderPass:      target.RenderPass,
			Framebuffer:     target.Framebuffer,
			RenderArea:      renderArea,
			ClearValueCount: uint32(len(clearValues)),
			PClearValues:    clearValues,
		}
		drv.CmdBeginRenderPass(cb, &renderPassInfo, vk.SubpassContentsInline)
		drv.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline.Handle)
		vertBuffers := []vk.Buffer{vbo}
		offsets := []vk.DeviceSize{0}
		drv.CmdBindVertexBuffers(cb, 0, vertBuffers, offsets)
		drv.CmdDraw(cb, 3, 1, 0, 0)
		drv.CmdEndRenderPass(cb)
	}
}

// RecordCopyImageToBuffer copies the whole color image into dst as tightly packed rows. The image has to be in
// TransferSrcOptimal layout, which the render pass leaves it in.
func RecordCopyImageToBuffer(drv common.Driver, img *common.Image, dst vk.Buffer) Recorder {
	return func(cb vk.CommandBuffer) {
		region := vk.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   img.Extent.Width,
			BufferImageHeight: img.Extent.Height,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: vk.Extent3D{
				Width:  img.Extent.Width,
				Height: img.Extent.Height,
				Depth:  1,
			},
		}
		drv.CmdCopyImageToBuffer(cb, img.Handle, vk.ImageLayoutTransferSrcOptimal, dst, []vk.BufferImageCopy{region})
	}
}
