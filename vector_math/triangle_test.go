package vector_math

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"
)

func TestTrianglePayload(t *testing.T) {
	tri := DefaultTriangle()
	b := tri.Bytes()
	if len(b) != 24 || tri.ByteSize() != 24 {
		t.Fatalf("Bytes() has %d bytes, ByteSize() = %d, want 24", len(b), tri.ByteSize())
	}
	want := []float32{-0.5, -0.5, 0.5, -0.5, 0.0, 0.5}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		if got != w {
			t.Errorf("float %d = %v, want %v", i, got, w)
		}
	}
}

func TestVertexLayout(t *testing.T) {
	binding := GetVertexBindingDescription()
	if binding.Stride != 8 || uintptr(binding.Stride) != unsafe.Sizeof(Vertex{}) {
		t.Errorf("stride = %d, want 8", binding.Stride)
	}
	attrs := GetVertexAttributeDescriptions()
	if len(attrs) != 1 || attrs[0].Location != 0 || attrs[0].Offset != 0 {
		t.Errorf("unexpected attributes %+v", attrs)
	}
}

func TestParseTriangle(t *testing.T) {
	got, err := ParseTriangle(" -0.5,-0.5; 0.5,-0.5 ;0,0.5")
	if err != nil {
		t.Fatalf("ParseTriangle() error = %v", err)
	}
	if got != DefaultTriangle() {
		t.Errorf("ParseTriangle() = %v, want %v", got, DefaultTriangle())
	}
	if got.String() != "[(-0.5,-0.5) (0.5,-0.5) (0,0.5)]" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestParseTriangleInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"0,0;1,1",
		"0,0;1,1;2,2;3,3",
		"0,0;1;2,2",
		"0,0;1,x;2,2",
		"0,0,0;1,1;2,2",
	} {
		if _, err := ParseTriangle(s); err == nil {
			t.Errorf("ParseTriangle(%q) succeeded, want error", s)
		}
	}
}

func TestCentroidAndArea(t *testing.T) {
	tri := DefaultTriangle()
	c := tri.Centroid()
	if math.Abs(float64(c.X)) > 1e-6 || math.Abs(float64(c.Y+1.0/6.0)) > 1e-6 {
		t.Errorf("Centroid() = %+v, want (0,-1/6)", c)
	}
	if a := tri.SignedArea(); a != 0.5 {
		t.Errorf("SignedArea() = %v, want 0.5", a)
	}
	flipped := Triangle{tri[0], tri[2], tri[1]}
	if a := flipped.SignedArea(); a != -0.5 {
		t.Errorf("SignedArea() of flipped winding = %v, want -0.5", a)
	}
	x, y := c.ToPixel(800, 600)
	if x != 400 || math.Abs(float64(y)-250) > 1e-3 {
		t.Errorf("ToPixel() = (%v,%v), want (400,250)", x, y)
	}
}
