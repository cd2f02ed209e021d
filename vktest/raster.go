package vktest

import (
	vk "github.com/goki/vulkan"
)

// The fake stores images linearly, 4 bytes per texel, independent of the requested tiling.

func texelOffset(img *image, x, y uint32) vk.DeviceSize {
	return img.offset + (vk.DeviceSize(y)*vk.DeviceSize(img.extent.Width)+vk.DeviceSize(x))*4
}

func setTexel(img *image, x, y uint32, c [4]uint8) {
	i := texelOffset(img, x, y)
	copy(img.mem.data[i:i+4], c[:])
}

// clampRect intersects r with the image bounds.
func clampRect(img *image, r vk.Rect2D) (x0, y0, x1, y1 int) {
	x0, y0 = int(r.Offset.X), int(r.Offset.Y)
	x1, y1 = x0+int(r.Extent.Width), y0+int(r.Extent.Height)
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > int(img.extent.Width) {
		x1 = int(img.extent.Width)
	}
	if y1 > int(img.extent.Height) {
		y1 = int(img.extent.Height)
	}
	return
}

func fillRect(img *image, r vk.Rect2D, c [4]uint8) {
	if img.mem == nil {
		return
	}
	x0, y0, x1, y1 := clampRect(img, r)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			setTexel(img, uint32(x), uint32(y), c)
		}
	}
}

// edgeFunction is twice the signed area of the triangle a, b, p. Its sign tells on which side of a->b p lies.
func edgeFunction(a, b, p [2]float32) float32 {
	return (p[0]-a[0])*(b[1]-a[1]) - (p[1]-a[1])*(b[0]-a[0])
}

// rasterizeTriangle maps NDC positions through the pipeline's first viewport and writes c to every pixel whose
// center is covered, limited by scissor and render area. Both windings are drawn as culling is not modeled.
func rasterizeTriangle(img *image, p *PipelineState, area vk.Rect2D, ndc [3][2]float32, c [4]uint8) {
	if img.mem == nil || len(p.Viewports) == 0 {
		return
	}
	vp := p.Viewports[0]
	var v [3][2]float32
	for i, pos := range ndc {
		v[i] = [2]float32{
			vp.X + (pos[0]+1)*vp.Width/2,
			vp.Y + (pos[1]+1)*vp.Height/2,
		}
	}
	signedArea := edgeFunction(v[0], v[1], v[2])
	if signedArea == 0 {
		return
	}

	x0, y0, x1, y1 := clampRect(img, area)
	if len(p.Scissors) > 0 {
		sx0, sy0, sx1, sy1 := clampRect(img, p.Scissors[0])
		x0, y0 = max(x0, sx0), max(y0, sy0)
		x1, y1 = min(x1, sx1), min(y1, sy1)
	}
	// Bounding box of the triangle
	minX, minY, maxX, maxY := v[0][0], v[0][1], v[0][0], v[0][1]
	for _, q := range v[1:] {
		minX, maxX = min(minX, q[0]), max(maxX, q[0])
		minY, maxY = min(minY, q[1]), max(maxY, q[1])
	}
	x0, y0 = max(x0, int(minX)), max(y0, int(minY))
	x1, y1 = min(x1, int(maxX)+1), min(y1, int(maxY)+1)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			center := [2]float32{float32(x) + 0.5, float32(y) + 0.5}
			w0 := edgeFunction(v[1], v[2], center)
			w1 := edgeFunction(v[2], v[0], center)
			w2 := edgeFunction(v[0], v[1], center)
			inside := (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0)
			if inside {
				setTexel(img, uint32(x), uint32(y), c)
			}
		}
	}
}
