package renderer

import (
	"log"

	"offscreen_triangle/common"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// OffscreenTarget is the color image the triangle is rendered into together with the render pass and framebuffer
// that reference it. Its final layout is TransferSrcOptimal so it can be copied out without another barrier.
type OffscreenTarget struct {
	Image       *common.Image
	RenderPass  vk.RenderPass
	Framebuffer vk.Framebuffer
	Extent      vk.Extent2D
	Format      vk.Format
}

// BuildTarget creates the offscreen color image, a render pass that clears and stores it and a framebuffer binding
// its view. On failure everything created so far is released again.
func BuildTarget(dc *common.Device, extent vk.Extent2D, format vk.Format) (*OffscreenTarget, error) {
	var partial common.Teardown
	drv := dc.Driver()

	img, err := common.CreateImage(dc, extent.Width, extent.Height, format,
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit|vk.ImageUsageColorAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create offscreen image")
	}
	partial.Push("offscreen image", func() { img.Destroy(dc) })

	renderPass, err := NewRenderPass(drv, dc.D, format)
	if err != nil {
		partial.Release()
		return nil, err
	}
	partial.Push("render pass", func() { drv.DestroyRenderPass(dc.D, renderPass) })

	framebuffer, err := NewFramebuffer(drv, dc.D, renderPass, img.View, extent)
	if err != nil {
		partial.Release()
		return nil, err
	}
	return &OffscreenTarget{
		Image:       img,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		Extent:      extent,
		Format:      format,
	}, nil
}

// Destroy releases framebuffer, render pass and image in that order.
func (t *OffscreenTarget) Destroy(dc *common.Device) {
	drv := dc.Driver()
	drv.DestroyFramebuffer(dc.D, t.Framebuffer)
	drv.DestroyRenderPass(dc.D, t.RenderPass)
	t.Image.Destroy(dc)
}

// NewRenderPass creates a render pass with a single color attachment of the given format and one graphics subpass.
func NewRenderPass(drv common.Driver, device vk.Device, format vk.Format) (vk.RenderPass, error) {
	renderPassInfo := renderPassCreateInfo(format)
	renderPass, err := drv.CreateRenderPass(device, &renderPassInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create render pass")
	}
	log.Println("Successfully created render pass")
	return renderPass, nil
}

func renderPassCreateInfo(format vk.Format) vk.RenderPassCreateInfo {
	colorAttachment := vk.AttachmentDescription{
		Flags:          0,
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutTransferSrcOptimal,
	}
	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		Flags:                   0,
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		InputAttachmentCount:    0,
		PInputAttachments:       nil,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentRef},
		PResolveAttachments:     nil,
		PDepthStencilAttachment: nil,
		PreserveAttachmentCount: 0,
		PPreserveAttachments:    nil,
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:      vk.SubpassExternal,
		DstSubpass:      0,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask:   0,
		DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
		DependencyFlags: 0,
	}
	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		PNext:           nil,
		Flags:           0,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
}

// NewFramebuffer binds view as the only attachment of renderPass.
func NewFramebuffer(drv common.Driver, device vk.Device, renderPass vk.RenderPass, view vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error) {
	framebufferInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		PNext:           nil,
		Flags:           0,
		RenderPass:      renderPass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{view},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	framebuffer, err := drv.CreateFramebuffer(device, &framebufferInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create framebuffer")
	}
	log.Printf("Created %dx%d framebuffer", extent.Width, extent.Height)
	return framebuffer, nil
}
