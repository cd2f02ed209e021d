package common

import (
	vk "github.com/goki/vulkan"
)

// Utility functions providing slightly altered versions of the driver calls. These altered versions should only
// hide very obvious default values that will not need to change most of the time. Names are prefixed with VKS
// which stands for (V)ul(K)an (S)implified.

// VKSCreateCommandPool implicitly instantiates the CreateInfo for the command pool based on the provided
// arguments. This is easily possible as the CreateInfo does only contain 2 interesting values in this case.
func VKSCreateCommandPool(drv Driver, device vk.Device, flags vk.CommandPoolCreateFlags, queueFamilyIndex uint32) (vk.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		PNext:            nil,
		Flags:            flags,
		QueueFamilyIndex: queueFamilyIndex,
	}
	return drv.CreateCommandPool(device, &poolInfo)
}

// VKSAllocatePrimaryCommandBuffer allocates exactly one primary level command buffer from cmdPool.
func VKSAllocatePrimaryCommandBuffer(drv Driver, device vk.Device, cmdPool vk.CommandPool) (vk.CommandBuffer, error) {
	cbAllocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		PNext:              nil,
		CommandPool:        cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers, err := drv.AllocateCommandBuffers(device, &cbAllocateInfo)
	if err != nil {
		return nil, err
	}
	return buffers[0], nil
}

// VKSCreateUnsignaledFence creates a fence in the unsignaled state, ready to be handed to a queue submission.
func VKSCreateUnsignaledFence(drv Driver, device vk.Device) (vk.Fence, error) {
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		PNext: nil,
		Flags: 0,
	}
	return drv.CreateFence(device, &fenceInfo)
}

// VKSCreate2DColorImageView creates a single layer, single mip 2D view with identity swizzle onto image.
func VKSCreate2DColorImageView(drv Driver, device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		PNext:    nil,
		Flags:    0,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	return drv.CreateImageView(device, createInfo)
}
