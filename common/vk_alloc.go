package common

import (
	"log"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// This Code section contains allocation helper functions. It aims to simplify the allocation of buffers and
// images on the selected device. Each resource gets exactly one dedicated memory block bound at offset 0.

// MemoryBlock is a device memory allocation bound to exactly one buffer or image.
type MemoryBlock struct {
	Handle    vk.DeviceMemory
	Size      vk.DeviceSize
	TypeIndex uint32
	Props     vk.MemoryPropertyFlags
}

type Buffer struct {
	Handle vk.Buffer
	Mem    MemoryBlock
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags
}

type Image struct {
	Handle vk.Image
	View   vk.ImageView
	Mem    MemoryBlock
	Extent vk.Extent2D
	Format vk.Format
	Usage  vk.ImageUsageFlags
}

// FindMemoryType scans the memory types of a device in order and returns the first index that is part of
// typeFilter and carries all of propFlags.
func FindMemoryType(memProps vk.PhysicalDeviceMemoryProperties, typeFilter uint32, propFlags vk.MemoryPropertyFlags) (uint32, error) {
	count := memProps.MemoryTypeCount
	if count > uint32(len(memProps.MemoryTypes)) {
		count = uint32(len(memProps.MemoryTypes))
	}
	for i := uint32(0); i < count; i++ {
		ofType := (typeFilter & (1 << i)) > 0
		hasProperties := memProps.MemoryTypes[i].PropertyFlags&propFlags == propFlags
		if ofType && hasProperties {
			log.Printf("Found memory type -> %d on heap %d", i, memProps.MemoryTypes[i].HeapIndex)
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "type bits %032b, properties %s", typeFilter, ToStringMemoryPropertyFlags(propFlags))
}

// sharing makes resources accessible from both the graphics and the transfer family if they differ. Work on the
// offscreen image and the staging buffer is split across both queues without ownership transfers.
func (dc *Device) sharing() (vk.SharingMode, []uint32) {
	if dc.SharedFamily() {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, dc.QFamilies.UniqueFamilies()
}

func allocateMemory(dc *Device, req vk.MemoryRequirements, props vk.MemoryPropertyFlags) (MemoryBlock, error) {
	log.Printf("Selecting memory for %s", toStringMemoryRequirements(req))
	typeIndex, err := FindMemoryType(dc.PdMemoryProps, req.MemoryTypeBits, props)
	if err != nil {
		return MemoryBlock{}, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           nil,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	deviceMem, err := dc.drv.AllocateMemory(dc.D, &allocInfo)
	if err != nil {
		return MemoryBlock{}, errors.Wrapf(err, "failed to allocate %d bytes of device memory", req.Size)
	}
	return MemoryBlock{
		Handle:    deviceMem,
		Size:      req.Size,
		TypeIndex: typeIndex,
		Props:     props,
	}, nil
}

func CreateBuffer(dc *Device, size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*Buffer, error) {
	var partial Teardown
	sharingMode, families := dc.sharing()
	bufferInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Size:                  size,
		Usage:                 usage,
		SharingMode:           sharingMode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
	}
	buf, err := dc.drv.CreateBuffer(dc.D, &bufferInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create buffer of %d bytes", size)
	}
	partial.Push("buffer", func() { dc.drv.DestroyBuffer(dc.D, buf) })

	bufRequirements := dc.drv.GetBufferMemoryRequirements(dc.D, buf)
	mem, err := allocateMemory(dc, bufRequirements, props)
	if err != nil {
		partial.Release()
		return nil, err
	}
	partial.Push("buffer memory", func() { dc.drv.FreeMemory(dc.D, mem.Handle) })

	// Associate allocated memory with buffer handle
	if err := dc.drv.BindBufferMemory(dc.D, buf, mem.Handle, 0); err != nil {
		partial.Release()
		return nil, errors.Wrap(err, "failed to bind device memory to buffer")
	}
	log.Printf("Created buffer (Size: %d Byte, memory: %d Byte, type: %d)", size, mem.Size, mem.TypeIndex)
	return &Buffer{
		Handle: buf,
		Mem:    mem,
		Size:   size,
		Usage:  usage,
	}, nil
}

// Destroy releases the buffer handle before its memory.
func (b *Buffer) Destroy(dc *Device) {
	dc.drv.DestroyBuffer(dc.D, b.Handle)
	dc.drv.FreeMemory(dc.D, b.Mem.Handle)
}

func isHostAccessible(props vk.MemoryPropertyFlags) bool {
	want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	return props&want == want
}

// ReadHostBuffer maps the first n bytes of the buffer's memory and returns a copy of them. No flush is issued, the
// memory has to be host coherent.
func ReadHostBuffer(dc *Device, buf *Buffer, n vk.DeviceSize) ([]byte, error) {
	if !isHostAccessible(buf.Mem.Props) {
		return nil, errors.New("cant read buffer as its memory is not host visible and coherent")
	}
	if n > buf.Size {
		return nil, errors.Errorf("read of %d bytes exceeds buffer of %d bytes", n, buf.Size)
	}
	data, err := dc.drv.MapMemory(dc.D, buf.Mem.Handle, 0, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to map buffer memory")
	}
	out := make([]byte, n)
	copy(out, data)
	dc.drv.UnmapMemory(dc.D, buf.Mem.Handle)
	return out, nil
}

// CreateImage creates a single mip, single layer 2D image with optimal tiling, binds dedicated memory and builds
// a color view with identity swizzle onto it.
func CreateImage(dc *Device, w uint32, h uint32, format vk.Format, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*Image, error) {
	var partial Teardown
	sharingMode, families := dc.sharing()
	imageInfo := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		PNext:     nil,
		Flags:     0,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  w,
			Height: h,
			Depth:  1,
		},
		MipLevels:             1,
		ArrayLayers:           1,
		Samples:               vk.SampleCount1Bit,
		Tiling:                vk.ImageTilingOptimal,
		Usage:                 usage,
		SharingMode:           sharingMode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		InitialLayout:         vk.ImageLayoutUndefined,
	}
	img, err := dc.drv.CreateImage(dc.D, imageInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %dx%d image", w, h)
	}
	partial.Push("image", func() { dc.drv.DestroyImage(dc.D, img) })

	memRequirements := dc.drv.GetImageMemoryRequirements(dc.D, img)
	mem, err := allocateMemory(dc, memRequirements, props)
	if err != nil {
		partial.Release()
		return nil, err
	}
	partial.Push("image memory", func() { dc.drv.FreeMemory(dc.D, mem.Handle) })

	if err := dc.drv.BindImageMemory(dc.D, img, mem.Handle, 0); err != nil {
		partial.Release()
		return nil, errors.Wrap(err, "failed to bind device memory to image")
	}

	view, err := VKSCreate2DColorImageView(dc.drv, dc.D, img, format)
	if err != nil {
		partial.Release()
		return nil, errors.Wrap(err, "failed to create image view")
	}
	log.Printf("Created image (%dx%d, memory: %d Byte, type: %d)", w, h, mem.Size, mem.TypeIndex)
	return &Image{
		Handle: img,
		View:   view,
		Mem:    mem,
		Extent: vk.Extent2D{Width: w, Height: h},
		Format: format,
		Usage:  usage,
	}, nil
}

// Destroy releases view, image and memory in that order.
func (img *Image) Destroy(dc *Device) {
	dc.drv.DestroyImageView(dc.D, img.View)
	dc.drv.DestroyImage(dc.D, img.Handle)
	dc.drv.FreeMemory(dc.D, img.Mem.Handle)
}
