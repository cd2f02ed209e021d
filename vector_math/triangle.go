package vector_math

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xlab/linmath"
)

// Triangle holds the three vertices drawn by the offscreen core, in submission order.
type Triangle [3]Vertex

// DefaultTriangle is the fixed triangle of a zero argument run. With a clockwise front face and no culling its
// winding does not matter.
func DefaultTriangle() Triangle {
	return Triangle{
		{Pos: Vec2{X: -0.5, Y: -0.5}},
		{Pos: Vec2{X: 0.5, Y: -0.5}},
		{Pos: Vec2{X: 0.0, Y: 0.5}},
	}
}

// Payload lays the positions out as tightly packed float32 pairs, matching the vertex binding stride.
func (t Triangle) Payload() linmath.ArrayFloat32 {
	floats := make([]float32, 0, 2*len(t))
	for i := range t {
		floats = append(floats, t[i].Pos.X, t[i].Pos.Y)
	}
	return linmath.ArrayFloat32(floats)
}

// Bytes is the raw vertex buffer content.
func (t Triangle) Bytes() []byte {
	return t.Payload().Data()
}

// ByteSize is the vertex buffer size in bytes.
func (t Triangle) ByteSize() int {
	return t.Payload().Sizeof()
}

func (t Triangle) Centroid() Vec2 {
	return t[0].Pos.Add(t[1].Pos).Add(t[2].Pos).ScalarMul(1.0 / 3.0)
}

// SignedArea is positive for triangles wound clockwise in NDC, where y points down.
func (t Triangle) SignedArea() float32 {
	return t[1].Pos.Sub(t[0].Pos).Cross(t[2].Pos.Sub(t[0].Pos)) / 2
}

// ParseTriangle reads three "x,y" pairs separated by ';', e.g. "-0.5,-0.5;0.5,-0.5;0,0.5".
func ParseTriangle(s string) (Triangle, error) {
	var t Triangle
	points := strings.Split(s, ";")
	if len(points) != len(t) {
		return t, errors.Errorf("expected %d points separated by ';', got %d", len(t), len(points))
	}
	for i, p := range points {
		coords := strings.Split(strings.TrimSpace(p), ",")
		if len(coords) != 2 {
			return t, errors.Errorf("point %d: expected \"x,y\", got %q", i, p)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 32)
		if err != nil {
			return t, errors.Errorf("point %d: %v", i, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 32)
		if err != nil {
			return t, errors.Errorf("point %d: %v", i, err)
		}
		t[i].Pos = Vec2{X: float32(x), Y: float32(y)}
	}
	return t, nil
}

func (t Triangle) String() string {
	return fmt.Sprintf("[(%g,%g) (%g,%g) (%g,%g)]", t[0].Pos.X, t[0].Pos.Y, t[1].Pos.X, t[1].Pos.Y, t[2].Pos.X, t[2].Pos.Y)
}
