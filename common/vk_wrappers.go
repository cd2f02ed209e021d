package common

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VkDriver wraps the raw go bindings to provide a more go-lang style interface. This should not hide or alter
// behavior and only allow for more tidy core code by tweaking signatures. It requires the Vulkan loader to be
// initialized (see the loader package) before the first call.
type VkDriver struct{}

var _ Driver = VkDriver{}

func (VkDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var gpuCount uint32
	err := VkResultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &gpuCount, nil))
	if err != nil {
		return nil, err
	}
	physDevices := make([]vk.PhysicalDevice, gpuCount)
	if gpuCount == 0 {
		return physDevices, nil
	}
	err = VkResultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &gpuCount, physDevices))
	if err != nil {
		return nil, err
	}
	return physDevices[:gpuCount], nil
}

func (VkDriver) GetPhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var pdProps vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &pdProps)
	pdProps.Deref()
	pdProps.Limits.Deref()
	return pdProps
}

func (VkDriver) GetPhysicalDeviceQueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	qFamilyCount := uint32(0)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qFamilyCount, nil)
	qFamilyProps := make([]vk.QueueFamilyProperties, qFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qFamilyCount, qFamilyProps)
	for i := range qFamilyProps {
		qFamilyProps[i].Deref()
		qFamilyProps[i].MinImageTransferGranularity.Deref()
	}
	return qFamilyProps
}

func (VkDriver) GetPhysicalDeviceMemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var pdMemProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &pdMemProps)
	pdMemProps.Deref()
	for i := range pdMemProps.MemoryTypes {
		pdMemProps.MemoryTypes[i].Deref()
	}
	for i := range pdMemProps.MemoryHeaps {
		pdMemProps.MemoryHeaps[i].Deref()
	}
	return pdMemProps
}

func (VkDriver) CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	var d vk.Device
	err := VkResultError("vkCreateDevice", vk.CreateDevice(pd, info, nil, &d))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (VkDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (VkDriver) DeviceWaitIdle(device vk.Device) error {
	return VkResultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(device))
}

func (VkDriver) GetDeviceQueue(device vk.Device, familyIndex uint32, queueIndex uint32) vk.Queue {
	var q vk.Queue
	vk.GetDeviceQueue(device, familyIndex, queueIndex, &q)
	return q
}

func (VkDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	var cp vk.CommandPool
	err := VkResultError("vkCreateCommandPool", vk.CreateCommandPool(device, info, nil, &cp))
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (VkDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (VkDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	var buffers = make([]vk.CommandBuffer, info.CommandBufferCount)
	err := VkResultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(device, info, buffers))
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

func (VkDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (VkDriver) BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return VkResultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb, info))
}

func (VkDriver) EndCommandBuffer(cb vk.CommandBuffer) error {
	return VkResultError("vkEndCommandBuffer", vk.EndCommandBuffer(cb))
}

func (VkDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return VkResultError("vkQueueSubmit", vk.QueueSubmit(queue, uint32(len(submits)), submits, fence))
}

func (VkDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, error) {
	var f vk.Fence
	err := VkResultError("vkCreateFence", vk.CreateFence(device, info, nil, &f))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (VkDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (VkDriver) WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	all := vk.Bool32(vk.False)
	if waitAll {
		all = vk.True
	}
	return vk.WaitForFences(device, uint32(len(fences)), fences, all, timeout)
}

func (VkDriver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buf vk.Buffer
	err := VkResultError("vkCreateBuffer", vk.CreateBuffer(device, info, nil, &buf))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (VkDriver) DestroyBuffer(device vk.Device, buffer vk.Buffer) {
	vk.DestroyBuffer(device, buffer, nil)
}

func (VkDriver) GetBufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &memRequirements)
	memRequirements.Deref()
	return memRequirements
}

func (VkDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, error) {
	var img vk.Image
	err := VkResultError("vkCreateImage", vk.CreateImage(device, info, nil, &img))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (VkDriver) DestroyImage(device vk.Device, image vk.Image) {
	vk.DestroyImage(device, image, nil)
}

func (VkDriver) GetImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &memRequirements)
	memRequirements.Deref()
	return memRequirements
}

func (VkDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var iv vk.ImageView
	err := VkResultError("vkCreateImageView", vk.CreateImageView(device, info, nil, &iv))
	if err != nil {
		return nil, err
	}
	return iv, nil
}

func (VkDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (VkDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var dm vk.DeviceMemory
	err := VkResultError("vkAllocateMemory", vk.AllocateMemory(device, info, nil, &dm))
	if err != nil {
		return nil, err
	}
	return dm, nil
}

func (VkDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.FreeMemory(device, memory, nil)
}

func (VkDriver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return VkResultError("vkBindBufferMemory", vk.BindBufferMemory(device, buffer, memory, offset))
}

func (VkDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return VkResultError("vkBindImageMemory", vk.BindImageMemory(device, image, memory, offset))
}

func (VkDriver) MapMemory(device vk.Device, memory vk.DeviceMemory, offset vk.DeviceSize, size vk.DeviceSize) ([]byte, error) {
	var pData unsafe.Pointer
	err := VkResultError("vkMapMemory", vk.MapMemory(device, memory, offset, size, 0, &pData))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(pData), int(size)), nil
}

func (VkDriver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.UnmapMemory(device, memory)
}

func (VkDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var rp vk.RenderPass
	err := VkResultError("vkCreateRenderPass", vk.CreateRenderPass(device, info, nil, &rp))
	if err != nil {
		return nil, err
	}
	return rp, nil
}

func (VkDriver) DestroyRenderPass(device vk.Device, renderPass vk.RenderPass) {
	vk.DestroyRenderPass(device, renderPass, nil)
}

func (VkDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	err := VkResultError("vkCreateFramebuffer", vk.CreateFramebuffer(device, info, nil, &fb))
	if err != nil {
		return nil, err
	}
	return fb, nil
}

func (VkDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (VkDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var sm vk.ShaderModule
	err := VkResultError("vkCreateShaderModule", vk.CreateShaderModule(device, info, nil, &sm))
	if err != nil {
		return nil, err
	}
	return sm, nil
}

func (VkDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (VkDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var pl vk.PipelineLayout
	err := VkResultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(device, info, nil, &pl))
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func (VkDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (VkDriver) CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	var gp = make([]vk.Pipeline, len(infos))
	err := VkResultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(device, nil, uint32(len(infos)), infos, nil, gp))
	if err != nil {
		return nil, err
	}
	return gp, nil
}

func (VkDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}

func (VkDriver) CmdUpdateBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset vk.DeviceSize, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdUpdateBuffer(cb, dst, offset, vk.DeviceSize(len(data)), (*uint32)(unsafe.Pointer(&data[0])))
}

func (VkDriver) CmdCopyBuffer(cb vk.CommandBuffer, src vk.Buffer, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cb, src, dst, uint32(len(regions)), regions)
}

func (VkDriver) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(cb, info, contents)
}

func (VkDriver) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb, bindPoint, pipeline)
}

func (VkDriver) CmdBindVertexBuffers(cb vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cb, firstBinding, uint32(len(buffers)), buffers, offsets)
}

func (VkDriver) CmdDraw(cb vk.CommandBuffer, vertexCount uint32, instanceCount uint32, firstVertex uint32, firstInstance uint32) {
	vk.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (VkDriver) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func (VkDriver) CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(cb, src, layout, dst, uint32(len(regions)), regions)
}
