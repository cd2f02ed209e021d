package common

import (
	"bytes"
	"testing"

	"offscreen_triangle/vktest"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const (
	deviceLocal  = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	hostVisible  = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	hostCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	hostCached   = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit)
)

func TestFindMemoryType(t *testing.T) {
	memProps := vktest.MemoryTable(deviceLocal, hostVisible, hostCoherent, hostCached)
	tests := []struct {
		name   string
		filter uint32
		props  vk.MemoryPropertyFlags
		want   uint32
		fail   bool
	}{
		{"first device local", 0xF, deviceLocal, 0, false},
		{"partial match skipped", 0xF, hostCoherent, 2, false},
		{"filter excludes first match", 0x8, hostCoherent, 3, false},
		{"host visible matches first superset", 0xE, hostVisible, 1, false},
		{"filter excludes all matches", 0x6, deviceLocal, 0, true},
		{"bits beyond type count", 0xF0, hostVisible, 0, true},
		{"no flags requested", 0x4, 0, 2, false},
	}
	for _, tt := range tests {
		got, err := FindMemoryType(memProps, tt.filter, tt.props)
		if tt.fail {
			if errors.Cause(err) != ErrNoMemoryType {
				t.Errorf("%s: expected ErrNoMemoryType, got %d, %v", tt.name, got, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		} else if got != tt.want {
			t.Errorf("%s: got type %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCreateBufferWithoutMemoryTypes(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Devices[0].Memory = vktest.MemoryTable()
	dc := newTestDevice(t, drv)
	_, err := CreateBuffer(dc, 24, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), deviceLocal)
	if errors.Cause(err) != ErrNoMemoryType {
		t.Errorf("Expected ErrNoMemoryType, got %v", err)
	}
	if n := drv.CallCount("AllocateMemory"); n != 0 {
		t.Errorf("Memory selection must fail before allocation, AllocateMemory called %d times", n)
	}
	if n := drv.Live(vktest.KindBuffer); n != 0 {
		t.Errorf("Buffer handle leaked after failed allocation")
	}
	dc.Destroy()
	expectClean(t, drv)
}

func TestCreateBufferMemoryCoversRequirement(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Alignment = 256
	dc := newTestDevice(t, drv)
	buf, err := CreateBuffer(dc, 24, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit), deviceLocal)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	if len(drv.MemoryAllocs) != 1 {
		t.Fatalf("Expected exactly one allocation, got %d", len(drv.MemoryAllocs))
	}
	if size := drv.MemoryAllocs[0].AllocationSize; size < 24 || size != 256 {
		t.Errorf("Allocation size %d does not match the requirement of 256", size)
	}
	if buf.Mem.TypeIndex != 0 || buf.Mem.Size != 256 {
		t.Errorf("Unexpected memory block of type %d with %d bytes", buf.Mem.TypeIndex, buf.Mem.Size)
	}
	buf.Destroy(dc)
	dc.Destroy()
	expectClean(t, drv)
}

func TestCreateImage(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	img, err := CreateImage(dc, 800, 600, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit|vk.ImageUsageColorAttachmentBit), deviceLocal)
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	if img.Mem.Size < 800*600*4 {
		t.Errorf("Image memory of %d bytes is smaller than its texels", img.Mem.Size)
	}
	if img.View == nil || drv.Live(vktest.KindImageView) != 1 {
		t.Errorf("Expected one image view")
	}
	if img.Extent.Width != 800 || img.Extent.Height != 600 {
		t.Errorf("Unexpected extent %v", img.Extent)
	}
	img.Destroy(dc)
	dc.Destroy()
	expectClean(t, drv)
}

func TestCreateImageViewFailureReleasesImage(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Fail["CreateImageView"] = errors.New("view failure")
	dc := newTestDevice(t, drv)
	if _, err := CreateImage(dc, 4, 4, vk.FormatR8g8b8a8Unorm, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit), deviceLocal); err == nil {
		t.Fatalf("Expected view failure to surface")
	}
	if drv.Live(vktest.KindImage) != 0 || drv.Live(vktest.KindMemory) != 0 {
		t.Errorf("Partial image not released: %v", drv.Leaks())
	}
	dc.Destroy()
	expectClean(t, drv)
}

func TestHostBufferRoundTrip(t *testing.T) {
	drv := vktest.NewDriver()
	dc := newTestDevice(t, drv)
	buf, err := CreateBuffer(dc, 16, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), hostCoherent)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := writeHostBuffer(dc, buf, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := ReadHostBuffer(dc, buf, 8)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read %v, wrote %v", got, payload)
	}
	if _, err := ReadHostBuffer(dc, buf, 17); err == nil {
		t.Errorf("Reading beyond the buffer should fail")
	}

	local, err := CreateBuffer(dc, 16, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), deviceLocal)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	if err := writeHostBuffer(dc, local, payload); err == nil {
		t.Errorf("Writing device local memory from the host should fail")
	}
	local.Destroy(dc)
	buf.Destroy(dc)
	dc.Destroy()
	expectClean(t, drv)
}

// writeHostBuffer fills host coherent buffers for tests, the renderer itself only reads them back.
func writeHostBuffer(dc *Device, buf *Buffer, payload []byte) error {
	if !isHostAccessible(buf.Mem.Props) {
		return errors.New("cant write to buffer as its memory is not host visible and coherent")
	}
	if vk.DeviceSize(len(payload)) > buf.Size {
		return errors.Errorf("payload of %d bytes exceeds buffer of %d bytes", len(payload), buf.Size)
	}
	data, err := dc.drv.MapMemory(dc.D, buf.Mem.Handle, 0, vk.DeviceSize(len(payload)))
	if err != nil {
		return errors.Wrap(err, "failed to map buffer memory")
	}
	copy(data, payload)
	dc.drv.UnmapMemory(dc.D, buf.Mem.Handle)
	return nil
}
