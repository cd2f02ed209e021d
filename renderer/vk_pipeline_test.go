package renderer

import (
	"bytes"
	"reflect"
	"testing"

	"offscreen_triangle/vktest"

	vk "github.com/goki/vulkan"
)

func TestRenderPassLayout(t *testing.T) {
	info := renderPassCreateInfo(FRAMEBUFFER_FORMAT)
	if len(info.PAttachments) != 1 || len(info.PSubpasses) != 1 || len(info.PDependencies) != 1 {
		t.Fatalf("Expected one attachment, subpass and dependency, got %d, %d and %d",
			len(info.PAttachments), len(info.PSubpasses), len(info.PDependencies))
	}
	att := info.PAttachments[0]
	if att.LoadOp != vk.AttachmentLoadOpClear || att.StoreOp != vk.AttachmentStoreOpStore {
		t.Errorf("Attachment should be cleared and stored")
	}
	if att.InitialLayout != vk.ImageLayoutUndefined || att.FinalLayout != vk.ImageLayoutTransferSrcOptimal {
		t.Errorf("Unexpected layouts %d -> %d", att.InitialLayout, att.FinalLayout)
	}
	dep := info.PDependencies[0]
	if dep.SrcSubpass != vk.SubpassExternal || dep.DstSubpass != 0 {
		t.Errorf("Dependency should go from external to subpass 0")
	}
	wantAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	if dep.DstAccessMask != wantAccess {
		t.Errorf("Dependency dst access %b, want %b", dep.DstAccessMask, wantAccess)
	}
}

func TestBuildIdempotent(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	extent := vk.Extent2D{Width: FRAME_WIDTH, Height: FRAME_HEIGHT}
	vertCode, fragCode := vktest.ShaderCode(8), vktest.ShaderCode(6)
	vertCopy, fragCopy := append([]byte(nil), vertCode...), append([]byte(nil), fragCode...)

	var passes []vk.RenderPass
	var pipelines []*Pipeline
	for i := 0; i < 2; i++ {
		rp, err := NewRenderPass(drv, dc.D, FRAMEBUFFER_FORMAT)
		if err != nil {
			t.Fatalf("Failed to create render pass: %v", err)
		}
		passes = append(passes, rp)
		p, err := BuildPipeline(drv, dc.D, passes[0], extent, vertCode, fragCode)
		if err != nil {
			t.Fatalf("Failed to build pipeline: %v", err)
		}
		pipelines = append(pipelines, p)
	}
	if !reflect.DeepEqual(drv.RenderPassInfos[0], drv.RenderPassInfos[1]) {
		t.Errorf("Render pass create infos differ between builds")
	}
	if !reflect.DeepEqual(drv.PipelineStates[0], drv.PipelineStates[1]) {
		t.Errorf("Pipeline states differ between builds:\n%+v\n%+v", drv.PipelineStates[0], drv.PipelineStates[1])
	}
	if !bytes.Equal(vertCode, vertCopy) || !bytes.Equal(fragCode, fragCopy) {
		t.Errorf("Shader code was modified")
	}
	if n := drv.Live(vktest.KindShaderModule); n != 0 {
		t.Errorf("%d shader modules outlived pipeline creation", n)
	}

	state := drv.PipelineStates[0]
	if len(state.Bindings) != 1 || state.Bindings[0].Stride != 8 {
		t.Errorf("Expected one binding with stride 8: %+v", state.Bindings)
	}
	if len(state.Attributes) != 1 || state.Attributes[0].Format != vk.FormatR32g32Sfloat || state.Attributes[0].Offset != 0 {
		t.Errorf("Expected one R32G32 attribute at offset 0: %+v", state.Attributes)
	}
	if state.CullMode != vk.CullModeFlags(vk.CullModeNone) || state.FrontFace != vk.FrontFaceClockwise {
		t.Errorf("Unexpected cull mode %d / front face %d", state.CullMode, state.FrontFace)
	}
	if len(state.Viewports) != 1 || state.Viewports[0].Width != 800 || state.Viewports[0].Height != 600 {
		t.Errorf("Unexpected viewports %+v", state.Viewports)
	}
	if len(state.Dynamic) != 0 || state.SetLayouts != 0 || state.PushRanges != 0 {
		t.Errorf("Expected no dynamic state and an empty layout")
	}
	wantMask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	if len(state.Blend) != 1 || state.Blend[0].BlendEnable != vk.False || state.Blend[0].ColorWriteMask != wantMask {
		t.Errorf("Expected blending disabled with full write mask: %+v", state.Blend)
	}
	if !reflect.DeepEqual(state.EntryPoints, []string{"main\x00", "main\x00"}) {
		t.Errorf("Unexpected entry points %q", state.EntryPoints)
	}

	for _, p := range pipelines {
		p.Destroy(drv, dc.D)
	}
	for _, rp := range passes {
		drv.DestroyRenderPass(dc.D, rp)
	}
	dc.Destroy()
	expectClean(t, drv)
}

func TestBuildPipelineRejectsShaderCode(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	rp, err := NewRenderPass(drv, dc.D, FRAMEBUFFER_FORMAT)
	if err != nil {
		t.Fatalf("Failed to create render pass: %v", err)
	}
	extent := vk.Extent2D{Width: 16, Height: 16}

	if _, err := BuildPipeline(drv, dc.D, rp, extent, []byte{1, 2, 3}, vktest.ShaderCode(4)); err == nil {
		t.Errorf("Expected truncated vertex code to be rejected")
	}
	// Valid vertex stage, garbage fragment stage: the vertex module has to be released again
	if _, err := BuildPipeline(drv, dc.D, rp, extent, vktest.ShaderCode(4), make([]byte, 16)); err == nil {
		t.Errorf("Expected fragment code without magic number to be rejected")
	}
	if n := drv.Live(vktest.KindShaderModule); n != 0 {
		t.Errorf("%d shader modules leaked", n)
	}
	if n := drv.Created(vktest.KindPipelineLayout); n != 0 {
		t.Errorf("No layout should be created when a stage fails, got %d", n)
	}
	drv.DestroyRenderPass(dc.D, rp)
	dc.Destroy()
	expectClean(t, drv)
}
