package vktest

import (
	"encoding/binary"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// command is one recorded operation. It runs when the command buffer is submitted.
type command func(s *execState)

// execState is the state a command buffer builds up while it executes.
type execState struct {
	queue         *queue
	framebuffer   *framebuffer
	renderPass    *renderPass
	renderArea    vk.Rect2D
	pipeline      *PipelineState
	vertexBuffers map[uint32]*buffer
	vertexOffsets map[uint32]vk.DeviceSize
}

// PipelineState is the part of a graphics pipeline create info the fake keeps and rasterizes with.
type PipelineState struct {
	Stages      []vk.ShaderStageFlagBits
	EntryPoints []string
	Bindings    []vk.VertexInputBindingDescription
	Attributes  []vk.VertexInputAttributeDescription
	Topology    vk.PrimitiveTopology
	Viewports   []vk.Viewport
	Scissors    []vk.Rect2D
	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32
	Samples     vk.SampleCountFlagBits
	Blend       []vk.PipelineColorBlendAttachmentState
	Dynamic     []vk.DynamicState
	SetLayouts  int
	PushRanges  int
	DepthTest   bool
}

func (d *Driver) capturePipeline(info *vk.GraphicsPipelineCreateInfo) (*PipelineState, error) {
	if int(info.StageCount) != len(info.PStages) {
		return nil, errors.Errorf("stage count %d does not match %d stages", info.StageCount, len(info.PStages))
	}
	if _, ok := d.lookup(KindRenderPass, unsafe.Pointer(info.RenderPass)); !ok {
		return nil, errors.New("invalid render pass")
	}
	layout, ok := d.lookup(KindPipelineLayout, unsafe.Pointer(info.Layout))
	if !ok {
		return nil, errors.New("invalid pipeline layout")
	}
	layoutInfo := layout.(vk.PipelineLayoutCreateInfo)
	state := &PipelineState{
		SetLayouts: len(layoutInfo.PSetLayouts),
		PushRanges: len(layoutInfo.PPushConstantRanges),
	}
	for _, stage := range info.PStages {
		if _, ok := d.lookup(KindShaderModule, unsafe.Pointer(stage.Module)); !ok {
			return nil, errors.New("invalid shader module")
		}
		state.Stages = append(state.Stages, stage.Stage)
		state.EntryPoints = append(state.EntryPoints, stage.PName)
	}
	if vi := info.PVertexInputState; vi != nil {
		state.Bindings = append(state.Bindings, vi.PVertexBindingDescriptions...)
		state.Attributes = append(state.Attributes, vi.PVertexAttributeDescriptions...)
	}
	if ia := info.PInputAssemblyState; ia != nil {
		state.Topology = ia.Topology
	}
	if vp := info.PViewportState; vp != nil {
		state.Viewports = append(state.Viewports, vp.PViewports...)
		state.Scissors = append(state.Scissors, vp.PScissors...)
	}
	if rs := info.PRasterizationState; rs != nil {
		state.PolygonMode = rs.PolygonMode
		state.CullMode = rs.CullMode
		state.FrontFace = rs.FrontFace
		state.LineWidth = rs.LineWidth
	}
	if ms := info.PMultisampleState; ms != nil {
		state.Samples = ms.RasterizationSamples
	}
	if cb := info.PColorBlendState; cb != nil {
		state.Blend = append(state.Blend, cb.PAttachments...)
	}
	if ds := info.PDynamicState; ds != nil {
		state.Dynamic = append(state.Dynamic, ds.PDynamicStates...)
	}
	if dss := info.PDepthStencilState; dss != nil {
		state.DepthTest = dss.DepthTestEnable == vk.True
	}
	if len(state.Dynamic) == 0 && (len(state.Viewports) == 0 || len(state.Scissors) == 0) {
		return nil, errors.New("static viewport state without viewports or scissors")
	}
	return state, nil
}

func (d *Driver) execute(c *commandBuffer, q *queue) {
	s := &execState{
		queue:         q,
		vertexBuffers: map[uint32]*buffer{},
		vertexOffsets: map[uint32]vk.DeviceSize{},
	}
	for _, cmd := range c.commands {
		cmd(s)
	}
	if s.renderPass != nil {
		d.violation("command buffer ended inside a render pass")
	}
}

// record appends cmd to a command buffer in recording state.
func (d *Driver) record(cb vk.CommandBuffer, name string, cmd command) {
	d.call(name)
	c := d.commandBuffer(cb)
	if c.state != "recording" {
		d.violation("%s recorded into a command buffer that is %s", name, c.state)
		return
	}
	c.commands = append(c.commands, cmd)
}

func (b *buffer) bytes(offset, size vk.DeviceSize) []byte {
	if b.mem == nil || offset+size > b.size {
		return nil
	}
	start := b.offset + offset
	return b.mem.data[start : start+size]
}

func (d *Driver) CmdUpdateBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset vk.DeviceSize, data []byte) {
	buf := d.buffer(dst)
	if len(data) == 0 || len(data) > 65536 || len(data)%4 != 0 || offset%4 != 0 {
		d.violation("inline update of %d bytes at offset %d", len(data), offset)
	}
	if buf.usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		d.violation("inline update into buffer without transfer dst usage")
	}
	// The data is captured at record time
	payload := append([]byte(nil), data...)
	d.record(cb, "CmdUpdateBuffer", func(s *execState) {
		target := buf.bytes(offset, vk.DeviceSize(len(payload)))
		if target == nil {
			d.violation("inline update of %d bytes at %d out of bounds or unbound", len(payload), offset)
			return
		}
		copy(target, payload)
	})
}

func (d *Driver) CmdCopyBuffer(cb vk.CommandBuffer, src vk.Buffer, dst vk.Buffer, regions []vk.BufferCopy) {
	from, to := d.buffer(src), d.buffer(dst)
	if from.usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) == 0 {
		d.violation("copy from buffer without transfer src usage")
	}
	if to.usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		d.violation("copy into buffer without transfer dst usage")
	}
	regions = append([]vk.BufferCopy(nil), regions...)
	d.record(cb, "CmdCopyBuffer", func(s *execState) {
		for _, r := range regions {
			in, out := from.bytes(r.SrcOffset, r.Size), to.bytes(r.DstOffset, r.Size)
			if in == nil || out == nil {
				d.violation("buffer copy of %d bytes out of bounds or unbound", r.Size)
				continue
			}
			copy(out, in)
		}
	})
}

func (d *Driver) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	data, ok := d.lookup(KindFramebuffer, unsafe.Pointer(info.Framebuffer))
	if !ok {
		d.record(cb, "CmdBeginRenderPass", func(s *execState) {})
		return
	}
	fb := data.(*framebuffer)
	rpData, ok := d.lookup(KindRenderPass, unsafe.Pointer(info.RenderPass))
	if !ok || rpData.(*renderPass) != fb.renderPass {
		d.violation("render pass does not match the framebuffer's render pass")
	}
	clearValues := make([][4]float32, len(info.PClearValues))
	for i := range info.PClearValues {
		clearValues[i] = colorOf(&info.PClearValues[i])
	}
	area := info.RenderArea
	d.record(cb, "CmdBeginRenderPass", func(s *execState) {
		if s.renderPass != nil {
			d.violation("render pass begun inside a render pass")
		}
		s.framebuffer, s.renderPass, s.renderArea = fb, fb.renderPass, area
		for i, att := range fb.renderPass.info.PAttachments {
			img := fb.attachments[i]
			if att.InitialLayout != vk.ImageLayoutUndefined && att.InitialLayout != img.layout {
				d.violation("attachment %d expected in layout %d, is %d", i, att.InitialLayout, img.layout)
			}
			img.layout = vk.ImageLayoutColorAttachmentOptimal
			if att.LoadOp == vk.AttachmentLoadOpClear {
				if i >= len(clearValues) {
					d.violation("no clear value for attachment %d", i)
					continue
				}
				fillRect(img, area, toUnorm8(clearValues[i]))
			}
		}
	})
}

func (d *Driver) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	data, ok := d.lookup(KindPipeline, unsafe.Pointer(pipeline))
	if !ok || bindPoint != vk.PipelineBindPointGraphics {
		d.violation("only graphics pipelines can be bound")
		d.record(cb, "CmdBindPipeline", func(s *execState) {})
		return
	}
	state := data.(*PipelineState)
	d.record(cb, "CmdBindPipeline", func(s *execState) {
		s.pipeline = state
	})
}

func (d *Driver) CmdBindVertexBuffers(cb vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	if len(buffers) != len(offsets) {
		d.violation("%d vertex buffers with %d offsets", len(buffers), len(offsets))
	}
	bound := make([]*buffer, len(buffers))
	for i, b := range buffers {
		bound[i] = d.buffer(b)
		if bound[i].usage&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) == 0 {
			d.violation("vertex buffer %d lacks vertex buffer usage", i)
		}
	}
	offsets = append([]vk.DeviceSize(nil), offsets...)
	d.record(cb, "CmdBindVertexBuffers", func(s *execState) {
		for i := range bound {
			s.vertexBuffers[firstBinding+uint32(i)] = bound[i]
			if i < len(offsets) {
				s.vertexOffsets[firstBinding+uint32(i)] = offsets[i]
			}
		}
	})
}

func (d *Driver) CmdDraw(cb vk.CommandBuffer, vertexCount uint32, instanceCount uint32, firstVertex uint32, firstInstance uint32) {
	d.record(cb, "CmdDraw", func(s *execState) {
		if s.renderPass == nil || s.pipeline == nil {
			d.violation("draw outside a render pass or without a pipeline")
			return
		}
		if instanceCount == 0 {
			return
		}
		p := s.pipeline
		if p.Topology != vk.PrimitiveTopologyTriangleList || p.PolygonMode != vk.PolygonModeFill {
			d.violation("only filled triangle lists are rasterized")
			return
		}
		positions, ok := d.fetchPositions(s, firstVertex, vertexCount)
		if !ok {
			return
		}
		img := s.framebuffer.attachments[0]
		for i := 0; i+2 < len(positions); i += 3 {
			rasterizeTriangle(img, p, s.renderArea, [3][2]float32{positions[i], positions[i+1], positions[i+2]}, d.FragmentColor)
		}
	})
}

// fetchPositions reads the R32G32_SFLOAT attribute at location 0 for every drawn vertex.
func (d *Driver) fetchPositions(s *execState, first, count uint32) ([][2]float32, bool) {
	p := s.pipeline
	if len(p.Attributes) == 0 || len(p.Bindings) == 0 {
		d.violation("pipeline has no vertex input")
		return nil, false
	}
	attr := p.Attributes[0]
	if attr.Format != vk.FormatR32g32Sfloat {
		d.violation("position attribute format %d is not R32G32_SFLOAT", attr.Format)
		return nil, false
	}
	var bind vk.VertexInputBindingDescription
	for _, b := range p.Bindings {
		if b.Binding == attr.Binding {
			bind = b
		}
	}
	buf, ok := s.vertexBuffers[attr.Binding]
	if !ok {
		d.violation("no vertex buffer bound to binding %d", attr.Binding)
		return nil, false
	}
	base := s.vertexOffsets[attr.Binding]
	out := make([][2]float32, 0, count)
	for v := first; v < first+count; v++ {
		raw := buf.bytes(base+vk.DeviceSize(v*bind.Stride+attr.Offset), 8)
		if raw == nil {
			d.violation("vertex %d reads outside the vertex buffer", v)
			return nil, false
		}
		out = append(out, [2]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(raw[0:4])),
			math.Float32frombits(binary.LittleEndian.Uint32(raw[4:8])),
		})
	}
	return out, true
}

func (d *Driver) CmdEndRenderPass(cb vk.CommandBuffer) {
	d.record(cb, "CmdEndRenderPass", func(s *execState) {
		if s.renderPass == nil {
			d.violation("render pass ended without being begun")
			return
		}
		for i, att := range s.renderPass.info.PAttachments {
			s.framebuffer.attachments[i].layout = att.FinalLayout
		}
		s.renderPass, s.framebuffer, s.pipeline = nil, nil, nil
	})
}

func (d *Driver) CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	img, buf := d.image(src), d.buffer(dst)
	if img.usage&vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) == 0 {
		d.violation("copy from image without transfer src usage")
	}
	if buf.usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		d.violation("copy into buffer without transfer dst usage")
	}
	regions = append([]vk.BufferImageCopy(nil), regions...)
	d.record(cb, "CmdCopyImageToBuffer", func(s *execState) {
		if layout != vk.ImageLayoutTransferSrcOptimal && layout != vk.ImageLayoutGeneral {
			d.violation("image copied out of layout %d", layout)
		}
		if img.layout != layout {
			d.violation("image is in layout %d, copy expects %d", img.layout, layout)
		}
		for _, r := range regions {
			d.copyImageRegion(img, buf, r)
		}
	})
}

func (d *Driver) copyImageRegion(img *image, buf *buffer, r vk.BufferImageCopy) {
	rowLength := r.BufferRowLength
	if rowLength == 0 {
		rowLength = r.ImageExtent.Width
	}
	if r.ImageOffset.X < 0 || r.ImageOffset.Y < 0 ||
		uint32(r.ImageOffset.X)+r.ImageExtent.Width > img.extent.Width ||
		uint32(r.ImageOffset.Y)+r.ImageExtent.Height > img.extent.Height {
		d.violation("copy region exceeds the image")
		return
	}
	rowBytes := vk.DeviceSize(r.ImageExtent.Width) * 4
	for y := uint32(0); y < r.ImageExtent.Height; y++ {
		srcRow := texelOffset(img, uint32(r.ImageOffset.X), uint32(r.ImageOffset.Y)+y)
		dstRow := r.BufferOffset + vk.DeviceSize(y)*vk.DeviceSize(rowLength)*4
		out := buf.bytes(dstRow, rowBytes)
		if out == nil || img.mem == nil {
			d.violation("copy row %d out of bounds or unbound", y)
			return
		}
		copy(out, img.mem.data[srcRow:srcRow+rowBytes])
	}
}

// colorOf reads the float32 color variant of a clear value.
func colorOf(cv *vk.ClearValue) [4]float32 {
	return *(*[4]float32)(unsafe.Pointer(cv))
}

func toUnorm8(c [4]float32) [4]uint8 {
	var out [4]uint8
	for i, f := range c {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		out[i] = uint8(math.Round(float64(f) * 255))
	}
	return out
}
