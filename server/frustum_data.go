package server

import (
	"github.com/chewxy/math32"

	"github.com/framewire/framewire/vec"
)

type FrustumKind uint32

const (
	FrustumFixed = FrustumKind(iota)
	FrustumHMD
)

// Wall is a physical projection surface given by three corners in world
// coordinates.
type Wall struct {
	BottomLeft  vec.Vector3
	BottomRight vec.Vector3
	TopLeft     vec.Vector3
	Kind        FrustumKind
}

// Projection describes a projector: position, throw distance, field of
// view in degrees and head/pitch/roll orientation in degrees.
type Projection struct {
	Origin   vec.Vector3
	Distance float32
	FOV      [2]float32
	HPR      [3]float32
}

// FrustumData is the resolved projection surface: its extent and the
// world-to-wall transform. In wall space the surface is centered at the
// origin in the z = 0 plane, an eye in front of it has positive z.
type FrustumData struct {
	Width     float32
	Height    float32
	Transform vec.Matrix4
	Kind      FrustumKind
}

func (self FrustumData) IsValid() bool {
	return self.Width > 0 && self.Height > 0
}

// FrustumData resolves the wall surface.
func (self Wall) FrustumData() FrustumData {
	u := self.BottomRight.Sub(self.BottomLeft)
	v := self.TopLeft.Sub(self.BottomLeft)
	width := u.Length()
	height := v.Length()
	if width == 0 || height == 0 {
		return FrustumData{}
	}

	u = u.MulScalar(1 / width)
	v = v.MulScalar(1 / height)
	n := u.Cross(v)

	center := self.BottomLeft.Add(
		self.BottomRight.Sub(self.BottomLeft).MulScalar(.5)).Add(
		self.TopLeft.Sub(self.BottomLeft).MulScalar(.5))

	// rotate world axes onto the wall basis, then recenter
	transform := vec.Identity4()
	transform.Set(0, 0, u.X)
	transform.Set(0, 1, u.Y)
	transform.Set(0, 2, u.Z)
	transform.Set(1, 0, v.X)
	transform.Set(1, 1, v.Y)
	transform.Set(1, 2, v.Z)
	transform.Set(2, 0, n.X)
	transform.Set(2, 1, n.Y)
	transform.Set(2, 2, n.Z)
	rotated := transform.TransformVector(center)
	transform.Set(0, 3, -rotated.X)
	transform.Set(1, 3, -rotated.Y)
	transform.Set(2, 3, -rotated.Z)

	return FrustumData{
		Width:     width,
		Height:    height,
		Transform: transform,
		Kind:      self.Kind,
	}
}

func degToRad(deg float32) float32 {
	return deg * math32.Pi / 180
}

// FrustumData resolves the projection to the equivalent wall surface at
// throw distance along the oriented axis.
func (self Projection) FrustumData() FrustumData {
	if self.Distance <= 0 {
		return FrustumData{}
	}
	width := 2 * self.Distance * math32.Tan(degToRad(self.FOV[0])*.5)
	height := 2 * self.Distance * math32.Tan(degToRad(self.FOV[1])*.5)
	if width <= 0 || height <= 0 {
		return FrustumData{}
	}

	head := degToRad(self.HPR[0])
	pitch := degToRad(self.HPR[1])
	roll := degToRad(self.HPR[2])

	rotation := rotationY(head).Mul(rotationX(pitch)).Mul(rotationZ(roll))
	inverse := rotation.Transposed()

	// in wall space the projector origin sits at (0, 0, distance)
	transform := inverse
	shifted := inverse.TransformVector(self.Origin)
	transform.Set(0, 3, -shifted.X)
	transform.Set(1, 3, -shifted.Y)
	transform.Set(2, 3, -shifted.Z+self.Distance)

	return FrustumData{
		Width:     width,
		Height:    height,
		Transform: transform,
		Kind:      FrustumFixed,
	}
}

func rotationX(a float32) vec.Matrix4 {
	sin, cos := math32.Sincos(a)
	m := vec.Identity4()
	m.Set(1, 1, cos)
	m.Set(1, 2, -sin)
	m.Set(2, 1, sin)
	m.Set(2, 2, cos)
	return m
}

func rotationY(a float32) vec.Matrix4 {
	sin, cos := math32.Sincos(a)
	m := vec.Identity4()
	m.Set(0, 0, cos)
	m.Set(0, 2, sin)
	m.Set(2, 0, -sin)
	m.Set(2, 2, cos)
	return m
}

func rotationZ(a float32) vec.Matrix4 {
	sin, cos := math32.Sincos(a)
	m := vec.Identity4()
	m.Set(0, 0, cos)
	m.Set(0, 1, -sin)
	m.Set(1, 0, sin)
	m.Set(1, 1, cos)
	return m
}
