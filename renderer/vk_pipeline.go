package renderer

import (
	"log"

	"offscreen_triangle/common"
	vm "offscreen_triangle/vector_math"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Pipeline is the graphics pipeline drawing the triangle and its (empty) layout.
type Pipeline struct {
	Layout vk.PipelineLayout
	Handle vk.Pipeline
}

// BuildPipeline creates a graphics pipeline for renderPass with a static viewport and scissor covering extent.
// Both shader modules only live for the duration of this call.
func BuildPipeline(drv common.Driver, device vk.Device, renderPass vk.RenderPass, extent vk.Extent2D, vertCode []byte, fragCode []byte) (*Pipeline, error) {
	// Shader module deletion can be done right after pipeline creation
	vertShaderMod, vertStageInfo, err := createShaderStage(drv, device, vertCode, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, errors.Wrap(err, "vertex stage")
	}
	defer drv.DestroyShaderModule(device, vertShaderMod)
	fragShaderMod, fragStageInfo, err := createShaderStage(drv, device, fragCode, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, errors.Wrap(err, "fragment stage")
	}
	defer drv.DestroyShaderModule(device, fragShaderMod)
	shaderStages := []vk.PipelineShaderStageCreateInfo{vertStageInfo, fragStageInfo}

	bindingDesc := []vk.VertexInputBindingDescription{vm.GetVertexBindingDescription()}
	attributeDesc := vm.GetVertexAttributeDescriptions()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		PNext:                           nil,
		Flags:                           0,
		VertexBindingDescriptionCount:   uint32(len(bindingDesc)),
		PVertexBindingDescriptions:      bindingDesc,
		VertexAttributeDescriptionCount: uint32(len(attributeDesc)),
		PVertexAttributeDescriptions:    attributeDesc,
	}
	inputAssemblyInfo := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		PNext:                  nil,
		Flags:                  0,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	// The target never changes size, so viewport and scissor are baked into the pipeline
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	viewportStateInfo := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		PNext:         nil,
		Flags:         0,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}
	rasterizerInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		DepthBiasConstantFactor: 0,
		DepthBiasClamp:          0,
		DepthBiasSlopeFactor:    0,
		LineWidth:               1.0,
	}
	multisamplingInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		PSampleMask:           nil,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	colorBlendAttachmentInfo := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlendingInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		PNext:           nil,
		Flags:           0,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentInfo},
		BlendConstants:  [4]float32{0, 0, 0, 0},
	}

	// No descriptors and no push constants
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PNext:                  nil,
		Flags:                  0,
		SetLayoutCount:         0,
		PSetLayouts:            nil,
		PushConstantRangeCount: 0,
		PPushConstantRanges:    nil,
	}
	layout, err := drv.CreatePipelineLayout(device, &pipelineLayoutInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline layout")
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               nil,
		Flags:               0,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssemblyInfo,
		PTessellationState:  nil,
		PViewportState:      &viewportStateInfo,
		PRasterizationState: &rasterizerInfo,
		PMultisampleState:   &multisamplingInfo,
		PDepthStencilState:  nil,
		PColorBlendState:    &colorBlendingInfo,
		PDynamicState:       nil,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  nil,
		BasePipelineIndex:   -1,
	}
	pipelines, err := drv.CreateGraphicsPipelines(device, []vk.GraphicsPipelineCreateInfo{pipelineInfo})
	if err != nil {
		drv.DestroyPipelineLayout(device, layout)
		return nil, errors.Wrap(err, "failed to create graphics pipeline")
	}
	log.Printf("Successfully created graphics pipeline")
	return &Pipeline{Layout: layout, Handle: pipelines[0]}, nil
}

// Destroy releases the pipeline before its layout.
func (p *Pipeline) Destroy(drv common.Driver, device vk.Device) {
	drv.DestroyPipeline(device, p.Handle)
	drv.DestroyPipelineLayout(device, p.Layout)
}
