// Package vktest provides a software Vulkan driver for tests. Driver implements the same method set as
// common.Driver, keeps every object it hands out in memory and executes submitted command buffers on the CPU,
// including a rasterizer for the single triangle pipeline of the offscreen core.
package vktest

import (
	"fmt"
	"sort"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const (
	KindDevice         = "device"
	KindCommandPool    = "command pool"
	KindCommandBuffer  = "command buffer"
	KindFence          = "fence"
	KindBuffer         = "buffer"
	KindImage          = "image"
	KindImageView      = "image view"
	KindMemory         = "memory"
	KindRenderPass     = "render pass"
	KindFramebuffer    = "framebuffer"
	KindShaderModule   = "shader module"
	KindPipelineLayout = "pipeline layout"
	KindPipeline       = "pipeline"
)

// SPIRV_MAGIC is the first word of every SPIR-V module.
const SPIRV_MAGIC uint32 = 0x07230203

// PhysicalDevice describes one device the fake reports during enumeration.
type PhysicalDevice struct {
	Properties    vk.PhysicalDeviceProperties
	QueueFamilies []vk.QueueFamilyProperties
	Memory        vk.PhysicalDeviceMemoryProperties
}

// DefaultPhysicalDevice is a discrete GPU with a single universal queue family, one device local memory type and
// two host visible coherent ones.
func DefaultPhysicalDevice() PhysicalDevice {
	pd := PhysicalDevice{
		QueueFamilies: []vk.QueueFamilyProperties{
			{
				QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit),
				QueueCount: 1,
			},
		},
	}
	pd.Properties.ApiVersion = vk.MakeVersion(1, 0, 0)
	pd.Properties.DriverVersion = vk.MakeVersion(1, 0, 0)
	pd.Properties.VendorID = 0x10005
	pd.Properties.DeviceType = vk.PhysicalDeviceTypeDiscreteGpu
	copy(pd.Properties.DeviceName[:], "vktest software device")
	pd.Memory = MemoryTable(
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit|vk.MemoryPropertyHostCachedBit),
	)
	return pd
}

// MemoryTable builds memory properties with one memory type per entry, in order. Device local types live on
// heap 0, everything else on heap 1.
func MemoryTable(types ...vk.MemoryPropertyFlags) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryHeapCount = 2
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 1 << 30, Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)}
	props.MemoryHeaps[1] = vk.MemoryHeap{Size: 1 << 30}
	props.MemoryTypeCount = uint32(len(types))
	for i, flags := range types {
		heap := uint32(1)
		if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
			heap = 0
		}
		props.MemoryTypes[i] = vk.MemoryType{PropertyFlags: flags, HeapIndex: heap}
	}
	return props
}

// ShaderCode returns a minimal module of the given number of words starting with the SPIR-V magic number.
func ShaderCode(words int) []byte {
	if words < 1 {
		words = 1
	}
	code := make([]byte, 4*words)
	code[0], code[1], code[2], code[3] = 0x03, 0x02, 0x23, 0x07
	return code
}

// Driver is a stateful fake of the Vulkan entry points. Configure the exported fields before the first call.
//
// Handles returned by Driver point into the Go heap while their vk types are cgo pointers to incomplete C
// structs. fmt and reflect panic on such values, so never format a handle; convert it to unsafe.Pointer first.
type Driver struct {
	Devices []PhysicalDevice
	// MemoryTypeBits is reported in every memory requirement, 0 means all types of the device
	MemoryTypeBits uint32
	Alignment      vk.DeviceSize
	// Waits with a timeout below FenceLatency nanoseconds report vk.Timeout for submitted work
	FenceLatency uint64
	// NeverSignal leaves submitted work pending and its fences unsignaled until DeviceWaitIdle
	NeverSignal bool
	// FragmentColor is written for every covered pixel
	FragmentColor [4]uint8
	// Fail maps a method name to the error that method returns
	Fail map[string]error

	// Calls lists every method invoked, in order
	Calls []string
	// Violations collects API misuse a validation layer would report
	Violations []string

	RenderPassInfos []vk.RenderPassCreateInfo
	PipelineStates  []PipelineState
	MemoryAllocs    []vk.MemoryAllocateInfo

	objects   map[unsafe.Pointer]*object
	physical  map[unsafe.Pointer]int
	pdHandles []vk.PhysicalDevice
	queues    map[unsafe.Pointer]*queue
	created   map[string]int
}

type object struct {
	kind string
	data interface{}
}

type device struct {
	pd     int
	queues map[uint32]vk.Queue
}

type queue struct {
	device *device
	family uint32
}

type commandPool struct {
	family uint32
}

type commandBuffer struct {
	pool     unsafe.Pointer
	family   uint32
	state    string
	// next is the state a pending buffer returns to once its work retired
	next     string
	flags    vk.CommandBufferUsageFlags
	commands []command
}

type fence struct {
	signaled  bool
	submitted bool
}

type memory struct {
	device    *device
	typeIndex uint32
	props     vk.MemoryPropertyFlags
	data      []byte
	mapped    bool
}

type binding struct {
	mem    *memory
	offset vk.DeviceSize
}

type buffer struct {
	size  vk.DeviceSize
	usage vk.BufferUsageFlags
	req   vk.MemoryRequirements
	binding
}

type image struct {
	extent vk.Extent3D
	format vk.Format
	usage  vk.ImageUsageFlags
	layout vk.ImageLayout
	req    vk.MemoryRequirements
	binding
}

type renderPass struct {
	info vk.RenderPassCreateInfo
}

type framebuffer struct {
	renderPass    *renderPass
	attachments   []*image
	width, height uint32
}

func NewDriver() *Driver {
	return &Driver{
		Devices:       []PhysicalDevice{DefaultPhysicalDevice()},
		Alignment:     256,
		FenceLatency:  1,
		FragmentColor: [4]uint8{255, 255, 255, 255},
		Fail:          map[string]error{},
	}
}

func (d *Driver) init() {
	if d.objects == nil {
		d.objects = map[unsafe.Pointer]*object{}
		d.physical = map[unsafe.Pointer]int{}
		d.queues = map[unsafe.Pointer]*queue{}
		d.created = map[string]int{}
	}
}

// call records the method and returns the injected failure for it, if any.
func (d *Driver) call(name string) error {
	d.init()
	d.Calls = append(d.Calls, name)
	if err, ok := d.Fail[name]; ok && err != nil {
		return err
	}
	return nil
}

func (d *Driver) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Driver) create(kind string, data interface{}) unsafe.Pointer {
	obj := &object{kind: kind, data: data}
	h := unsafe.Pointer(obj)
	d.objects[h] = obj
	d.created[kind]++
	return h
}

func (d *Driver) lookup(kind string, h unsafe.Pointer) (interface{}, bool) {
	d.init()
	obj, ok := d.objects[h]
	if !ok || obj.kind != kind {
		d.violation("%s %p is not a live object", kind, h)
		return nil, false
	}
	return obj.data, true
}

func (d *Driver) destroy(kind string, h unsafe.Pointer) {
	if h == nil {
		return
	}
	if _, ok := d.lookup(kind, h); ok {
		delete(d.objects, h)
	}
}

// CallCount counts how often the named method was invoked.
func (d *Driver) CallCount(name string) int {
	n := 0
	for _, c := range d.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// Pending counts the command buffers whose submitted work has not retired yet.
func (d *Driver) Pending() int {
	n := 0
	for _, obj := range d.objects {
		if cb, ok := obj.data.(*commandBuffer); ok && cb.state == "pending" {
			n++
		}
	}
	return n
}

// Created counts the objects of a kind ever created.
func (d *Driver) Created(kind string) int {
	return d.created[kind]
}

// Live counts the objects of a kind that were created and not yet destroyed.
func (d *Driver) Live(kind string) int {
	n := 0
	for _, obj := range d.objects {
		if obj.kind == kind {
			n++
		}
	}
	return n
}

// Leaks lists every kind with live objects, e.g. "buffer: 2".
func (d *Driver) Leaks() []string {
	counts := map[string]int{}
	for _, obj := range d.objects {
		counts[obj.kind]++
	}
	var leaks []string
	for kind, n := range counts {
		leaks = append(leaks, fmt.Sprintf("%s: %d", kind, n))
	}
	sort.Strings(leaks)
	return leaks
}

// Physical device level

func (d *Driver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	if err := d.call("EnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	for len(d.pdHandles) < len(d.Devices) {
		h := unsafe.Pointer(new(object))
		d.physical[h] = len(d.pdHandles)
		d.pdHandles = append(d.pdHandles, vk.PhysicalDevice(h))
	}
	out := make([]vk.PhysicalDevice, len(d.Devices))
	copy(out, d.pdHandles)
	return out, nil
}

func (d *Driver) physicalDevice(pd vk.PhysicalDevice) *PhysicalDevice {
	idx, ok := d.physical[unsafe.Pointer(pd)]
	if !ok {
		d.violation("unknown physical device %p", unsafe.Pointer(pd))
		return &PhysicalDevice{}
	}
	return &d.Devices[idx]
}

func (d *Driver) GetPhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	d.call("GetPhysicalDeviceProperties")
	return d.physicalDevice(pd).Properties
}

func (d *Driver) GetPhysicalDeviceQueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	d.call("GetPhysicalDeviceQueueFamilyProperties")
	families := d.physicalDevice(pd).QueueFamilies
	out := make([]vk.QueueFamilyProperties, len(families))
	copy(out, families)
	return out
}

func (d *Driver) GetPhysicalDeviceMemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	d.call("GetPhysicalDeviceMemoryProperties")
	return d.physicalDevice(pd).Memory
}

// Logical device level

func (d *Driver) CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	if err := d.call("CreateDevice"); err != nil {
		return nil, err
	}
	idx, ok := d.physical[unsafe.Pointer(pd)]
	if !ok {
		return nil, errors.Errorf("unknown physical device %p", unsafe.Pointer(pd))
	}
	families := d.Devices[idx].QueueFamilies
	seen := map[uint32]bool{}
	for _, qi := range info.PQueueCreateInfos {
		if qi.QueueFamilyIndex >= uint32(len(families)) {
			return nil, errors.Errorf("queue family %d does not exist", qi.QueueFamilyIndex)
		}
		if seen[qi.QueueFamilyIndex] {
			d.violation("queue family %d requested twice", qi.QueueFamilyIndex)
		}
		seen[qi.QueueFamilyIndex] = true
		if qi.QueueCount > families[qi.QueueFamilyIndex].QueueCount {
			d.violation("queue family %d only has %d queues", qi.QueueFamilyIndex, families[qi.QueueFamilyIndex].QueueCount)
		}
	}
	dev := &device{pd: idx, queues: map[uint32]vk.Queue{}}
	for family := range seen {
		h := unsafe.Pointer(new(object))
		d.queues[h] = &queue{device: dev, family: family}
		dev.queues[family] = vk.Queue(h)
	}
	return vk.Device(d.create(KindDevice, dev)), nil
}

func (d *Driver) DestroyDevice(dev vk.Device) {
	d.call("DestroyDevice")
	for h, obj := range d.objects {
		if obj.kind != KindDevice {
			d.violation("%s %p still alive when destroying device", obj.kind, h)
		}
	}
	d.destroy(KindDevice, unsafe.Pointer(dev))
}

func (d *Driver) DeviceWaitIdle(dev vk.Device) error {
	if err := d.call("DeviceWaitIdle"); err != nil {
		return err
	}
	d.lookup(KindDevice, unsafe.Pointer(dev))
	// An idle device has retired all submitted work
	for _, obj := range d.objects {
		switch o := obj.data.(type) {
		case *commandBuffer:
			if o.state == "pending" {
				o.state = o.next
			}
		case *fence:
			if o.submitted {
				o.signaled = true
			}
		}
	}
	return nil
}

func (d *Driver) device(dev vk.Device) *device {
	data, ok := d.lookup(KindDevice, unsafe.Pointer(dev))
	if !ok {
		return &device{queues: map[uint32]vk.Queue{}}
	}
	return data.(*device)
}

func (d *Driver) GetDeviceQueue(dev vk.Device, familyIndex uint32, queueIndex uint32) vk.Queue {
	d.call("GetDeviceQueue")
	q, ok := d.device(dev).queues[familyIndex]
	if !ok || queueIndex != 0 {
		d.violation("queue %d of family %d was not requested at device creation", queueIndex, familyIndex)
	}
	return q
}

// Commands and synchronization

func (d *Driver) CreateCommandPool(dev vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	if err := d.call("CreateCommandPool"); err != nil {
		return nil, err
	}
	if _, ok := d.device(dev).queues[info.QueueFamilyIndex]; !ok {
		d.violation("command pool for queue family %d without a queue", info.QueueFamilyIndex)
	}
	return vk.CommandPool(d.create(KindCommandPool, &commandPool{family: info.QueueFamilyIndex})), nil
}

func (d *Driver) DestroyCommandPool(dev vk.Device, pool vk.CommandPool) {
	d.call("DestroyCommandPool")
	// Command buffers are freed implicitly with their pool
	for h, obj := range d.objects {
		if cb, ok := obj.data.(*commandBuffer); ok && cb.pool == unsafe.Pointer(pool) {
			if cb.state == "pending" {
				d.violation("command pool destroyed while command buffer %p is pending", h)
			}
			delete(d.objects, h)
		}
	}
	d.destroy(KindCommandPool, unsafe.Pointer(pool))
}

func (d *Driver) AllocateCommandBuffers(dev vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	data, ok := d.lookup(KindCommandPool, unsafe.Pointer(info.CommandPool))
	if !ok {
		return nil, errors.New("invalid command pool")
	}
	pool := data.(*commandPool)
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	for i := range buffers {
		cb := &commandBuffer{pool: unsafe.Pointer(info.CommandPool), family: pool.family, state: "initial"}
		buffers[i] = vk.CommandBuffer(d.create(KindCommandBuffer, cb))
	}
	return buffers, nil
}

func (d *Driver) FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	d.call("FreeCommandBuffers")
	for _, cb := range buffers {
		data, ok := d.lookup(KindCommandBuffer, unsafe.Pointer(cb))
		if !ok {
			continue
		}
		c := data.(*commandBuffer)
		if c.pool != unsafe.Pointer(pool) {
			d.violation("command buffer %p freed to a foreign pool", unsafe.Pointer(cb))
		}
		if c.state == "pending" {
			d.violation("command buffer %p freed while pending", unsafe.Pointer(cb))
		}
		d.destroy(KindCommandBuffer, unsafe.Pointer(cb))
	}
}

func (d *Driver) commandBuffer(cb vk.CommandBuffer) *commandBuffer {
	data, ok := d.lookup(KindCommandBuffer, unsafe.Pointer(cb))
	if !ok {
		return &commandBuffer{}
	}
	return data.(*commandBuffer)
}

func (d *Driver) BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	c := d.commandBuffer(cb)
	if c.state == "recording" || c.state == "pending" {
		return errors.Errorf("command buffer is %s", c.state)
	}
	c.state = "recording"
	c.flags = info.Flags
	c.commands = nil
	return nil
}

func (d *Driver) EndCommandBuffer(cb vk.CommandBuffer) error {
	if err := d.call("EndCommandBuffer"); err != nil {
		return err
	}
	c := d.commandBuffer(cb)
	if c.state != "recording" {
		return errors.Errorf("command buffer is %s, not recording", c.state)
	}
	c.state = "executable"
	return nil
}

func (d *Driver) QueueSubmit(q vk.Queue, submits []vk.SubmitInfo, f vk.Fence) error {
	if err := d.call("QueueSubmit"); err != nil {
		return err
	}
	qu, ok := d.queues[unsafe.Pointer(q)]
	if !ok {
		return errors.Errorf("unknown queue %p", unsafe.Pointer(q))
	}
	var fe *fence
	if f != nil {
		data, ok := d.lookup(KindFence, unsafe.Pointer(f))
		if !ok {
			return errors.New("invalid fence")
		}
		fe = data.(*fence)
		if fe.signaled || fe.submitted {
			d.violation("fence %p submitted while signaled or in use", unsafe.Pointer(f))
		}
	}
	for _, submit := range submits {
		if int(submit.CommandBufferCount) != len(submit.PCommandBuffers) {
			d.violation("submit count %d does not match %d command buffers", submit.CommandBufferCount, len(submit.PCommandBuffers))
		}
		for _, cb := range submit.PCommandBuffers {
			c := d.commandBuffer(cb)
			if c.state != "executable" {
				return errors.Errorf("command buffer %p is %s, not executable", unsafe.Pointer(cb), c.state)
			}
			if c.family != qu.family {
				d.violation("command buffer of family %d submitted to queue of family %d", c.family, qu.family)
			}
			d.execute(c, qu)
			next := "executable"
			if c.flags&vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit) != 0 {
				next = "invalid"
			}
			c.state = next
			if d.NeverSignal {
				c.state, c.next = "pending", next
			}
		}
	}
	if fe != nil {
		fe.submitted = true
		fe.signaled = !d.NeverSignal
	}
	return nil
}

func (d *Driver) CreateFence(dev vk.Device, info *vk.FenceCreateInfo) (vk.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return nil, err
	}
	signaled := info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0
	return vk.Fence(d.create(KindFence, &fence{signaled: signaled})), nil
}

func (d *Driver) DestroyFence(dev vk.Device, f vk.Fence) {
	d.call("DestroyFence")
	if obj, ok := d.objects[unsafe.Pointer(f)]; ok && obj.kind == KindFence {
		if fe := obj.data.(*fence); fe.submitted && !fe.signaled {
			d.violation("fence %p destroyed while its submission is pending", unsafe.Pointer(f))
		}
	}
	d.destroy(KindFence, unsafe.Pointer(f))
}

func (d *Driver) WaitForFences(dev vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	if err := d.call("WaitForFences"); err != nil {
		return vk.ErrorDeviceLost
	}
	done := 0
	for _, f := range fences {
		data, ok := d.lookup(KindFence, unsafe.Pointer(f))
		if !ok {
			return vk.ErrorDeviceLost
		}
		fe := data.(*fence)
		// Submitted work takes FenceLatency to complete
		if fe.signaled && (!fe.submitted || timeout >= d.FenceLatency) {
			done++
		}
	}
	if done == len(fences) || (!waitAll && done > 0) {
		return vk.Success
	}
	return vk.Timeout
}

// Resources and memory

func (d *Driver) requirements(dev vk.Device, size vk.DeviceSize) vk.MemoryRequirements {
	bits := d.MemoryTypeBits
	if bits == 0 {
		count := d.Devices[d.device(dev).pd].Memory.MemoryTypeCount
		bits = uint32(1)<<count - 1
	}
	align := d.Alignment
	if align == 0 {
		align = 1
	}
	return vk.MemoryRequirements{
		Size:           (size + align - 1) / align * align,
		Alignment:      align,
		MemoryTypeBits: bits,
	}
}

func (d *Driver) CreateBuffer(dev vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	if err := d.call("CreateBuffer"); err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return nil, errors.New("buffer size must be greater than 0")
	}
	d.checkSharing(info.SharingMode, info.QueueFamilyIndexCount, info.PQueueFamilyIndices)
	buf := &buffer{size: info.Size, usage: info.Usage, req: d.requirements(dev, info.Size)}
	return vk.Buffer(d.create(KindBuffer, buf)), nil
}

func (d *Driver) checkSharing(mode vk.SharingMode, count uint32, families []uint32) {
	if mode == vk.SharingModeConcurrent && (count < 2 || int(count) != len(families)) {
		d.violation("concurrent sharing needs at least 2 queue families, got %d", count)
	}
}

func (d *Driver) DestroyBuffer(dev vk.Device, buf vk.Buffer) {
	d.call("DestroyBuffer")
	d.destroy(KindBuffer, unsafe.Pointer(buf))
}

func (d *Driver) buffer(buf vk.Buffer) *buffer {
	data, ok := d.lookup(KindBuffer, unsafe.Pointer(buf))
	if !ok {
		return &buffer{}
	}
	return data.(*buffer)
}

func (d *Driver) GetBufferMemoryRequirements(dev vk.Device, buf vk.Buffer) vk.MemoryRequirements {
	d.call("GetBufferMemoryRequirements")
	return d.buffer(buf).req
}

func (d *Driver) CreateImage(dev vk.Device, info *vk.ImageCreateInfo) (vk.Image, error) {
	if err := d.call("CreateImage"); err != nil {
		return nil, err
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 || info.Extent.Depth != 1 {
		return nil, errors.Errorf("unsupported image extent %v", info.Extent)
	}
	if info.Format != vk.FormatR8g8b8a8Unorm {
		return nil, errors.Errorf("format %d is not supported", info.Format)
	}
	d.checkSharing(info.SharingMode, info.QueueFamilyIndexCount, info.PQueueFamilyIndices)
	size := vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4
	img := &image{
		extent: info.Extent,
		format: info.Format,
		usage:  info.Usage,
		layout: info.InitialLayout,
		req:    d.requirements(dev, size),
	}
	return vk.Image(d.create(KindImage, img)), nil
}

func (d *Driver) DestroyImage(dev vk.Device, img vk.Image) {
	d.call("DestroyImage")
	d.destroy(KindImage, unsafe.Pointer(img))
}

func (d *Driver) image(img vk.Image) *image {
	data, ok := d.lookup(KindImage, unsafe.Pointer(img))
	if !ok {
		return &image{}
	}
	return data.(*image)
}

func (d *Driver) GetImageMemoryRequirements(dev vk.Device, img vk.Image) vk.MemoryRequirements {
	d.call("GetImageMemoryRequirements")
	return d.image(img).req
}

func (d *Driver) CreateImageView(dev vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return nil, err
	}
	data, ok := d.lookup(KindImage, unsafe.Pointer(info.Image))
	if !ok {
		return nil, errors.New("invalid image")
	}
	img := data.(*image)
	if img.mem == nil {
		d.violation("view created on image without bound memory")
	}
	if info.Format != img.format {
		d.violation("view format %d differs from image format %d", info.Format, img.format)
	}
	return vk.ImageView(d.create(KindImageView, img)), nil
}

func (d *Driver) DestroyImageView(dev vk.Device, view vk.ImageView) {
	d.call("DestroyImageView")
	d.destroy(KindImageView, unsafe.Pointer(view))
}

func (d *Driver) AllocateMemory(dev vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	d.MemoryAllocs = append(d.MemoryAllocs, *info)
	if err := d.call("AllocateMemory"); err != nil {
		return nil, err
	}
	de := d.device(dev)
	props := d.Devices[de.pd].Memory
	if info.MemoryTypeIndex >= props.MemoryTypeCount {
		return nil, errors.Errorf("memory type %d does not exist", info.MemoryTypeIndex)
	}
	mem := &memory{
		device:    de,
		typeIndex: info.MemoryTypeIndex,
		props:     props.MemoryTypes[info.MemoryTypeIndex].PropertyFlags,
		data:      make([]byte, info.AllocationSize),
	}
	return vk.DeviceMemory(d.create(KindMemory, mem)), nil
}

// FreeMemory releases the allocation. Resources still bound to it stay valid handles but must not be used.
func (d *Driver) FreeMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.call("FreeMemory")
	if m, ok := d.memory(mem); ok && m.mapped {
		d.violation("memory %p freed while mapped", unsafe.Pointer(mem))
	}
	d.destroy(KindMemory, unsafe.Pointer(mem))
}

func (d *Driver) memory(mem vk.DeviceMemory) (*memory, bool) {
	data, ok := d.lookup(KindMemory, unsafe.Pointer(mem))
	if !ok {
		return nil, false
	}
	return data.(*memory), true
}

func (d *Driver) bind(b *binding, req vk.MemoryRequirements, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	m, ok := d.memory(mem)
	if !ok {
		return errors.New("invalid memory")
	}
	if b.mem != nil {
		d.violation("resource is already bound to memory")
	}
	if req.MemoryTypeBits&(1<<m.typeIndex) == 0 {
		d.violation("memory type %d is not allowed by type bits %b", m.typeIndex, req.MemoryTypeBits)
	}
	if vk.DeviceSize(len(m.data)) < offset+req.Size {
		d.violation("memory of %d bytes too small for %d bytes at offset %d", len(m.data), req.Size, offset)
		return errors.New("memory too small")
	}
	b.mem, b.offset = m, offset
	return nil
}

func (d *Driver) BindBufferMemory(dev vk.Device, buf vk.Buffer, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	if err := d.call("BindBufferMemory"); err != nil {
		return err
	}
	b := d.buffer(buf)
	return d.bind(&b.binding, b.req, mem, offset)
}

func (d *Driver) BindImageMemory(dev vk.Device, img vk.Image, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	if err := d.call("BindImageMemory"); err != nil {
		return err
	}
	i := d.image(img)
	return d.bind(&i.binding, i.req, mem, offset)
}

func (d *Driver) MapMemory(dev vk.Device, mem vk.DeviceMemory, offset vk.DeviceSize, size vk.DeviceSize) ([]byte, error) {
	if err := d.call("MapMemory"); err != nil {
		return nil, err
	}
	m, ok := d.memory(mem)
	if !ok {
		return nil, errors.New("invalid memory")
	}
	if m.props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return nil, errors.Errorf("memory type %d is not host visible", m.typeIndex)
	}
	if m.mapped {
		d.violation("memory %p mapped twice", unsafe.Pointer(mem))
	}
	if offset+size > vk.DeviceSize(len(m.data)) {
		return nil, errors.Errorf("mapping %d bytes at %d exceeds allocation of %d bytes", size, offset, len(m.data))
	}
	m.mapped = true
	return m.data[offset : offset+size], nil
}

func (d *Driver) UnmapMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.call("UnmapMemory")
	if m, ok := d.memory(mem); ok {
		if !m.mapped {
			d.violation("memory %p unmapped without being mapped", unsafe.Pointer(mem))
		}
		m.mapped = false
	}
}

// Render infrastructure

func (d *Driver) CreateRenderPass(dev vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	if err := d.call("CreateRenderPass"); err != nil {
		return nil, err
	}
	if int(info.AttachmentCount) != len(info.PAttachments) || int(info.SubpassCount) != len(info.PSubpasses) {
		return nil, errors.New("render pass counts do not match their slices")
	}
	d.RenderPassInfos = append(d.RenderPassInfos, *info)
	return vk.RenderPass(d.create(KindRenderPass, &renderPass{info: *info})), nil
}

func (d *Driver) DestroyRenderPass(dev vk.Device, rp vk.RenderPass) {
	d.call("DestroyRenderPass")
	d.destroy(KindRenderPass, unsafe.Pointer(rp))
}

func (d *Driver) CreateFramebuffer(dev vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	if err := d.call("CreateFramebuffer"); err != nil {
		return nil, err
	}
	data, ok := d.lookup(KindRenderPass, unsafe.Pointer(info.RenderPass))
	if !ok {
		return nil, errors.New("invalid render pass")
	}
	rp := data.(*renderPass)
	if len(info.PAttachments) != len(rp.info.PAttachments) {
		return nil, errors.Errorf("framebuffer has %d attachments, render pass %d", len(info.PAttachments), len(rp.info.PAttachments))
	}
	fb := &framebuffer{renderPass: rp, width: info.Width, height: info.Height}
	for _, v := range info.PAttachments {
		data, ok := d.lookup(KindImageView, unsafe.Pointer(v))
		if !ok {
			return nil, errors.New("invalid attachment view")
		}
		img := data.(*image)
		if img.extent.Width < info.Width || img.extent.Height < info.Height {
			d.violation("framebuffer %dx%d larger than attachment %dx%d", info.Width, info.Height, img.extent.Width, img.extent.Height)
		}
		fb.attachments = append(fb.attachments, img)
	}
	return vk.Framebuffer(d.create(KindFramebuffer, fb)), nil
}

func (d *Driver) DestroyFramebuffer(dev vk.Device, fb vk.Framebuffer) {
	d.call("DestroyFramebuffer")
	d.destroy(KindFramebuffer, unsafe.Pointer(fb))
}

func (d *Driver) CreateShaderModule(dev vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	if err := d.call("CreateShaderModule"); err != nil {
		return nil, err
	}
	if info.CodeSize == 0 || info.CodeSize%4 != 0 || info.CodeSize != uint64(4*len(info.PCode)) {
		return nil, errors.Errorf("code size %d does not match %d words", info.CodeSize, len(info.PCode))
	}
	if info.PCode[0] != SPIRV_MAGIC {
		return nil, errors.Errorf("code does not start with the SPIR-V magic number, got %#08x", info.PCode[0])
	}
	return vk.ShaderModule(d.create(KindShaderModule, len(info.PCode))), nil
}

func (d *Driver) DestroyShaderModule(dev vk.Device, module vk.ShaderModule) {
	d.call("DestroyShaderModule")
	d.destroy(KindShaderModule, unsafe.Pointer(module))
}

func (d *Driver) CreatePipelineLayout(dev vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	if err := d.call("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	return vk.PipelineLayout(d.create(KindPipelineLayout, *info)), nil
}

func (d *Driver) DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout) {
	d.call("DestroyPipelineLayout")
	d.destroy(KindPipelineLayout, unsafe.Pointer(layout))
}

func (d *Driver) CreateGraphicsPipelines(dev vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	if err := d.call("CreateGraphicsPipelines"); err != nil {
		return nil, err
	}
	pipelines := make([]vk.Pipeline, len(infos))
	for i := range infos {
		state, err := d.capturePipeline(&infos[i])
		if err != nil {
			for _, p := range pipelines[:i] {
				d.destroy(KindPipeline, unsafe.Pointer(p))
			}
			return nil, err
		}
		d.PipelineStates = append(d.PipelineStates, *state)
		pipelines[i] = vk.Pipeline(d.create(KindPipeline, state))
	}
	return pipelines, nil
}

func (d *Driver) DestroyPipeline(dev vk.Device, p vk.Pipeline) {
	d.call("DestroyPipeline")
	d.destroy(KindPipeline, unsafe.Pointer(p))
}
