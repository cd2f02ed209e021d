package common

import (
	vk "github.com/goki/vulkan"
)

// Driver is the set of Vulkan entry points the offscreen core calls. Every method keeps the shape of the raw
// binding but returns Go values and errors instead of out-parameters and result codes. VkDriver forwards to the
// loaded Vulkan implementation, tests substitute a fake.
type Driver interface {
	// Physical device level
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error)
	GetPhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties
	GetPhysicalDeviceQueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties
	GetPhysicalDeviceMemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties

	// Logical device level
	CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error)
	DestroyDevice(device vk.Device)
	DeviceWaitIdle(device vk.Device) error
	GetDeviceQueue(device vk.Device, familyIndex uint32, queueIndex uint32) vk.Queue

	// Commands and synchronization
	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error)
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)
	BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(cb vk.CommandBuffer) error
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
	CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, error)
	DestroyFence(device vk.Device, fence vk.Fence)
	// WaitForFences returns the raw result so callers can tell vk.Timeout apart from failures.
	WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result

	// Resources and memory
	CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(device vk.Device, buffer vk.Buffer)
	GetBufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements
	CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(device vk.Device, image vk.Image)
	GetImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(device vk.Device, view vk.ImageView)
	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(device vk.Device, memory vk.DeviceMemory)
	BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error
	BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error
	// MapMemory exposes size bytes of host visible memory starting at offset. The slice is only valid until
	// UnmapMemory is called for the same memory.
	MapMemory(device vk.Device, memory vk.DeviceMemory, offset vk.DeviceSize, size vk.DeviceSize) ([]byte, error)
	UnmapMemory(device vk.Device, memory vk.DeviceMemory)

	// Render infrastructure
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(device vk.Device, renderPass vk.RenderPass)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)
	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)

	// Recording
	CmdUpdateBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset vk.DeviceSize, data []byte)
	CmdCopyBuffer(cb vk.CommandBuffer, src vk.Buffer, dst vk.Buffer, regions []vk.BufferCopy)
	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindVertexBuffers(cb vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdDraw(cb vk.CommandBuffer, vertexCount uint32, instanceCount uint32, firstVertex uint32, firstInstance uint32)
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy)
}
