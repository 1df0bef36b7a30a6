package server

import (
	"github.com/chewxy/math32"
)

// Viewport is a fractional sub-rectangle of a rendering surface.
type Viewport struct {
	X float32
	Y float32
	W float32
	H float32
}

func FullViewport() Viewport {
	return Viewport{X: 0, Y: 0, W: 1, H: 1}
}

func (self Viewport) IsValid() bool {
	return self.W > 0 && self.H > 0
}

func (self Viewport) IsFull() bool {
	return self == FullViewport()
}

// Apply interprets the viewport as a sub-rectangle of the parent and
// returns the composition.
func (self Viewport) Apply(parent Viewport) Viewport {
	return Viewport{
		X: parent.X + self.X*parent.W,
		Y: parent.Y + self.Y*parent.H,
		W: self.W * parent.W,
		H: self.H * parent.H,
	}
}

// PixelViewport is a pixel-integer rectangle.
type PixelViewport struct {
	X int32
	Y int32
	W int32
	H int32
}

func (self PixelViewport) HasArea() bool {
	return self.W > 0 && self.H > 0
}

// ApplyViewport snaps a fractional viewport onto this pixel viewport.
func (self PixelViewport) ApplyViewport(vp Viewport) PixelViewport {
	if !self.HasArea() || !vp.IsValid() {
		return PixelViewport{}
	}
	x := self.X + int32(math32.Round(float32(self.W)*vp.X))
	y := self.Y + int32(math32.Round(float32(self.H)*vp.Y))
	w := int32(math32.Round(float32(self.W) * vp.W))
	h := int32(math32.Round(float32(self.H) * vp.H))
	return PixelViewport{X: x, Y: y, W: w, H: h}
}

// ViewportOf returns the fractional viewport of a sub-rectangle relative
// to this pixel viewport. The result is pixel-correct: applying it back
// reproduces the sub-rectangle.
func (self PixelViewport) ViewportOf(sub PixelViewport) Viewport {
	if !self.HasArea() {
		return FullViewport()
	}
	return Viewport{
		X: float32(sub.X-self.X) / float32(self.W),
		Y: float32(sub.Y-self.Y) / float32(self.H),
		W: float32(sub.W) / float32(self.W),
		H: float32(sub.H) / float32(self.H),
	}
}

// Pixel describes a pixel decomposition kernel: this compound renders
// pixel (X, Y) of every (W, H) block.
type Pixel struct {
	X uint32
	Y uint32
	W uint32
	H uint32
}

func AllPixels() Pixel {
	return Pixel{X: 0, Y: 0, W: 1, H: 1}
}

func (self Pixel) IsValid() bool {
	return self.W > 0 && self.H > 0 && self.X < self.W && self.Y < self.H
}

// Apply composes a child kernel within a parent kernel.
func (self Pixel) Apply(parent Pixel) Pixel {
	if !self.IsValid() || !parent.IsValid() {
		return parent
	}
	return Pixel{
		X: parent.X + self.X*parent.W,
		Y: parent.Y + self.Y*parent.H,
		W: self.W * parent.W,
		H: self.H * parent.H,
	}
}

// SubPixel selects one pass of a multi-pass (FSAA, DOF) decomposition.
type SubPixel struct {
	Index uint32
	Size  uint32
}

func AllSubPixels() SubPixel {
	return SubPixel{Index: 0, Size: 1}
}

func (self SubPixel) IsValid() bool {
	return self.Size > 0 && self.Index < self.Size
}

func (self SubPixel) Apply(parent SubPixel) SubPixel {
	if !self.IsValid() || !parent.IsValid() {
		return parent
	}
	return SubPixel{
		Index: parent.Index*self.Size + self.Index,
		Size:  parent.Size * self.Size,
	}
}

// Range is a database decomposition interval within [0, 1].
type Range struct {
	Start float32
	End   float32
}

func FullRange() Range {
	return Range{Start: 0, End: 1}
}

func (self Range) IsValid() bool {
	return 0 <= self.Start && self.Start <= self.End && self.End <= 1
}

func (self Range) HasData() bool {
	return self.End > self.Start
}

// Apply narrows the parent interval to this sub-interval.
func (self Range) Apply(parent Range) Range {
	w := parent.End - parent.Start
	return Range{
		Start: parent.Start + self.Start*w,
		End:   parent.Start + self.End*w,
	}
}

// Zoom scales readback output.
type Zoom struct {
	X float32
	Y float32
}

func NoZoom() Zoom {
	return Zoom{X: 1, Y: 1}
}

func (self Zoom) IsValid() bool {
	return self.X != 0 && self.Y != 0
}

func (self Zoom) Apply(parent Zoom) Zoom {
	return Zoom{X: self.X * parent.X, Y: self.Y * parent.Y}
}

// ColorMask gates the color channels written by a draw.
type ColorMask struct {
	Red   bool
	Green bool
	Blue  bool
}

func ColorMaskAll() ColorMask {
	return ColorMask{Red: true, Green: true, Blue: true}
}

const (
	colorMaskRed   = uint32(0x01)
	colorMaskGreen = uint32(0x02)
	colorMaskBlue  = uint32(0x04)
)

func ColorMaskFromBits(bits uint32) ColorMask {
	return ColorMask{
		Red:   bits&colorMaskRed != 0,
		Green: bits&colorMaskGreen != 0,
		Blue:  bits&colorMaskBlue != 0,
	}
}

func (self ColorMask) Bits() uint32 {
	var bits uint32
	if self.Red {
		bits |= colorMaskRed
	}
	if self.Green {
		bits |= colorMaskGreen
	}
	if self.Blue {
		bits |= colorMaskBlue
	}
	return bits
}

// Eye is a bitmask of eye passes.
type Eye uint32

const (
	EyeCyclop = Eye(0x01)
	EyeLeft   = Eye(0x02)
	EyeRight  = Eye(0x04)

	EyesAll    = EyeCyclop | EyeLeft | EyeRight
	EyesStereo = EyeLeft | EyeRight

	NumEyes = 3
)

// Index returns the bit position, used to index per-eye tables.
func (self Eye) Index() int {
	switch self {
	case EyeLeft:
		return 1
	case EyeRight:
		return 2
	default:
		return 0
	}
}

func (self Eye) String() string {
	switch self {
	case EyeCyclop:
		return "cyclop"
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return "eyes"
	}
}

// Task is a bitmask of rendering tasks.
type Task uint32

const (
	TaskClear    = Task(0x01)
	TaskDraw     = Task(0x02)
	TaskAssemble = Task(0x04)
	TaskReadback = Task(0x08)
	TaskView     = Task(0x10)

	TaskNone = Task(0)
)

// StereoMode selects how stereo eye passes reach the display.
type StereoMode uint32

const (
	StereoModeUnset = StereoMode(iota)
	StereoModeQuad
	StereoModeAnaglyph
)

// Draw buffer selectors, numerically equal to their GL counterparts.
const (
	DrawBufferFront      = uint32(0x0404)
	DrawBufferBack       = uint32(0x0405)
	DrawBufferFrontLeft  = uint32(0x0400)
	DrawBufferFrontRight = uint32(0x0401)
	DrawBufferBackLeft   = uint32(0x0402)
	DrawBufferBackRight  = uint32(0x0403)
)

// drawBuffers is indexed by [stereo][doublebuffered][eye index].
var drawBuffers = [2][2][NumEyes]uint32{
	{
		{DrawBufferFront, DrawBufferFront, DrawBufferFront},
		{DrawBufferBack, DrawBufferBack, DrawBufferBack},
	},
	{
		{DrawBufferFront, DrawBufferFrontLeft, DrawBufferFrontRight},
		{DrawBufferBack, DrawBufferBackLeft, DrawBufferBackRight},
	},
}

func boolIndex(v bool) int {
	if v {
		return 1
	}
	return 0
}
