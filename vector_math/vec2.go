package vector_math

// Vec2 is a position in normalized device coordinates, x to the right and y downwards.
type Vec2 struct {
	X, Y float32
}

func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{
		X: v.X - w.X,
		Y: v.Y - w.Y,
	}
}

func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{
		X: v.X + w.X,
		Y: v.Y + w.Y,
	}
}

func (v Vec2) ScalarMul(factor float32) Vec2 {
	return Vec2{
		X: v.X * factor,
		Y: v.Y * factor,
	}
}

// Cross is the z component of the 3D cross product of v and w.
func (v Vec2) Cross(w Vec2) float32 {
	return v.X*w.Y - v.Y*w.X
}

// ToPixel maps v onto a width x height framebuffer covered by a full size viewport.
func (v Vec2) ToPixel(width, height uint32) (x, y float32) {
	return (v.X + 1) * float32(width) / 2, (v.Y + 1) * float32(height) / 2
}
