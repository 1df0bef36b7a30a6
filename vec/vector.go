package vec

import (
	"github.com/chewxy/math32"
)

// Vector3 is a 3 component float32 vector.
type Vector3 struct {
	X float32
	Y float32
	Z float32
}

func V3(x float32, y float32, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (self Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: self.X + other.X, Y: self.Y + other.Y, Z: self.Z + other.Z}
}

func (self Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: self.X - other.X, Y: self.Y - other.Y, Z: self.Z - other.Z}
}

func (self Vector3) MulScalar(s float32) Vector3 {
	return Vector3{X: self.X * s, Y: self.Y * s, Z: self.Z * s}
}

func (self Vector3) Dot(other Vector3) float32 {
	return self.X*other.X + self.Y*other.Y + self.Z*other.Z
}

func (self Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		X: self.Y*other.Z - self.Z*other.Y,
		Y: self.Z*other.X - self.X*other.Z,
		Z: self.X*other.Y - self.Y*other.X,
	}
}

func (self Vector3) Length() float32 {
	return math32.Sqrt(self.Dot(self))
}

// Normalized returns the unit vector in this direction, or the zero
// vector when the length is zero.
func (self Vector3) Normalized() Vector3 {
	length := self.Length()
	if length == 0 {
		return Vector3{}
	}
	return self.MulScalar(1 / length)
}

func (self Vector3) Negated() Vector3 {
	return Vector3{X: -self.X, Y: -self.Y, Z: -self.Z}
}

// Vector4 is a 4 component float32 vector.
type Vector4 struct {
	X float32
	Y float32
	Z float32
	W float32
}

func V4(x float32, y float32, z float32, w float32) Vector4 {
	return Vector4{X: x, Y: y, Z: z, W: w}
}

// XYZ drops the w component.
func (self Vector4) XYZ() Vector3 {
	return Vector3{X: self.X, Y: self.Y, Z: self.Z}
}
