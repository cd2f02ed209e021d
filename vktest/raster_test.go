package vktest

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func testImage(w, h uint32) *image {
	return &image{
		extent:  vk.Extent3D{Width: w, Height: h, Depth: 1},
		binding: binding{mem: &memory{data: make([]byte, w*h*4)}},
	}
}

func texel(img *image, x, y uint32) [4]uint8 {
	i := texelOffset(img, x, y)
	var c [4]uint8
	copy(c[:], img.mem.data[i:i+4])
	return c
}

func TestRasterizeBothWindings(t *testing.T) {
	white := [4]uint8{255, 255, 255, 255}
	p := &PipelineState{Viewports: []vk.Viewport{{Width: 8, Height: 8, MaxDepth: 1}}}
	area := vk.Rect2D{Extent: vk.Extent2D{Width: 8, Height: 8}}
	windings := [][3][2]float32{
		{{-1, -1}, {1, -1}, {-1, 1}},
		{{-1, -1}, {-1, 1}, {1, -1}},
	}
	for i, tri := range windings {
		img := testImage(8, 8)
		rasterizeTriangle(img, p, area, tri, white)
		if c := texel(img, 0, 0); c != white {
			t.Errorf("Winding %d: covered pixel not written, got %v", i, c)
		}
		if c := texel(img, 7, 7); c != [4]uint8{} {
			t.Errorf("Winding %d: uncovered pixel written, got %v", i, c)
		}
	}
}

func TestRasterizeRespectsScissor(t *testing.T) {
	white := [4]uint8{255, 255, 255, 255}
	p := &PipelineState{
		Viewports: []vk.Viewport{{Width: 8, Height: 8, MaxDepth: 1}},
		Scissors:  []vk.Rect2D{{Extent: vk.Extent2D{Width: 4, Height: 8}}},
	}
	img := testImage(8, 8)
	rasterizeTriangle(img, p, vk.Rect2D{Extent: vk.Extent2D{Width: 8, Height: 8}}, [3][2]float32{{-1, -1}, {3, -1}, {-1, 3}}, white)
	if c := texel(img, 3, 3); c != white {
		t.Errorf("Pixel inside scissor not written, got %v", c)
	}
	if c := texel(img, 5, 0); c != [4]uint8{} {
		t.Errorf("Pixel outside scissor written, got %v", c)
	}
}

func TestToUnorm8(t *testing.T) {
	got := toUnorm8([4]float32{0, 0, 0.25, 1})
	if got != [4]uint8{0, 0, 64, 255} {
		t.Errorf("toUnorm8 = %v", got)
	}
	if got := toUnorm8([4]float32{-1, 2, 0.5, 1}); got != [4]uint8{0, 255, 128, 255} {
		t.Errorf("Out of range values not clamped: %v", got)
	}
}

func TestWaitForFences(t *testing.T) {
	drv := NewDriver()
	f, err := drv.CreateFence(nil, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo})
	if err != nil {
		t.Fatalf("CreateFence failed: %v", err)
	}
	if res := drv.WaitForFences(nil, []vk.Fence{f}, true, 1000); res != vk.Timeout {
		t.Errorf("Unsubmitted unsignaled fence should time out, got %d", res)
	}
	signaled, _ := drv.CreateFence(nil, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	})
	if res := drv.WaitForFences(nil, []vk.Fence{signaled}, true, 0); res != vk.Success {
		t.Errorf("Signaled fence should not wait, got %d", res)
	}
	if res := drv.WaitForFences(nil, []vk.Fence{f, signaled}, false, 0); res != vk.Success {
		t.Errorf("Waiting for any fence should succeed, got %d", res)
	}
	drv.DestroyFence(nil, f)
	drv.DestroyFence(nil, signaled)
	if leaks := drv.Leaks(); len(leaks) != 0 {
		t.Errorf("Leaks: %v", leaks)
	}
}
