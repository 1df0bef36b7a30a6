package server

import (
	"github.com/framewire/framewire/bus"
	"github.com/framewire/framewire/vec"
)

// RenderContext is the immutable state bundle sent to a client for one
// rendering task. It is built per visit and consumed by packet emission.
//
// The wire layout is fixed, all little-endian: pvp i32x4, vp f32x4,
// overdraw i32x4, range f32x2, pixel u32x4, subpixel u32x2, zoom f32x2,
// period u32, phase u32, offset i32x2, eye u32, buffer u32, bufferMask
// u32, view uuid+version, taskID u32, frustum f32x6, headTransform
// f32x16, ortho f32x6, orthoTransform f32x16. The frame id travels in
// the message header.
type RenderContext struct {
	FrameID bus.Id

	PVP      PixelViewport
	Overdraw PixelViewport
	VP       Viewport
	Range    Range
	Pixel    Pixel
	SubPixel SubPixel
	Zoom     Zoom
	Period   uint32
	Phase    uint32
	OffsetX  int32
	OffsetY  int32

	Eye        Eye
	Buffer     uint32
	BufferMask ColorMask
	View       bus.ObjectVersion
	TaskID     uint32

	Frustum        vec.Frustum
	HeadTransform  vec.Matrix4
	Ortho          vec.Frustum
	OrthoTransform vec.Matrix4
}

func writeViewport(os *bus.OutStream, vp Viewport) {
	os.WriteFloat32(vp.X)
	os.WriteFloat32(vp.Y)
	os.WriteFloat32(vp.W)
	os.WriteFloat32(vp.H)
}

func readViewport(is *bus.InStream) (Viewport, error) {
	var vp Viewport
	var err error
	if vp.X, err = is.ReadFloat32(); err != nil {
		return vp, err
	}
	if vp.Y, err = is.ReadFloat32(); err != nil {
		return vp, err
	}
	if vp.W, err = is.ReadFloat32(); err != nil {
		return vp, err
	}
	vp.H, err = is.ReadFloat32()
	return vp, err
}

func writeFrustum(os *bus.OutStream, f vec.Frustum) {
	os.WriteFloat32(f.Left)
	os.WriteFloat32(f.Right)
	os.WriteFloat32(f.Bottom)
	os.WriteFloat32(f.Top)
	os.WriteFloat32(f.Near)
	os.WriteFloat32(f.Far)
}

func readFrustum(is *bus.InStream) (vec.Frustum, error) {
	var f vec.Frustum
	var err error
	if f.Left, err = is.ReadFloat32(); err != nil {
		return f, err
	}
	if f.Right, err = is.ReadFloat32(); err != nil {
		return f, err
	}
	if f.Bottom, err = is.ReadFloat32(); err != nil {
		return f, err
	}
	if f.Top, err = is.ReadFloat32(); err != nil {
		return f, err
	}
	if f.Near, err = is.ReadFloat32(); err != nil {
		return f, err
	}
	f.Far, err = is.ReadFloat32()
	return f, err
}

func writeMatrix4(os *bus.OutStream, m vec.Matrix4) {
	for _, v := range m {
		os.WriteFloat32(v)
	}
}

func readMatrix4(is *bus.InStream) (vec.Matrix4, error) {
	var m vec.Matrix4
	var err error
	for i := range m {
		if m[i], err = is.ReadFloat32(); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (self *RenderContext) Write(os *bus.OutStream) {
	writePixelViewport(os, self.PVP)
	writeViewport(os, self.VP)
	writePixelViewport(os, self.Overdraw)
	os.WriteFloat32(self.Range.Start)
	os.WriteFloat32(self.Range.End)
	os.WriteUint32(self.Pixel.X)
	os.WriteUint32(self.Pixel.Y)
	os.WriteUint32(self.Pixel.W)
	os.WriteUint32(self.Pixel.H)
	os.WriteUint32(self.SubPixel.Index)
	os.WriteUint32(self.SubPixel.Size)
	os.WriteFloat32(self.Zoom.X)
	os.WriteFloat32(self.Zoom.Y)
	os.WriteUint32(self.Period)
	os.WriteUint32(self.Phase)
	os.WriteInt32(self.OffsetX)
	os.WriteInt32(self.OffsetY)
	os.WriteUint32(uint32(self.Eye))
	os.WriteUint32(self.Buffer)
	os.WriteUint32(self.BufferMask.Bits())
	self.View.Write(os)
	os.WriteUint32(self.TaskID)
	writeFrustum(os, self.Frustum)
	writeMatrix4(os, self.HeadTransform)
	writeFrustum(os, self.Ortho)
	writeMatrix4(os, self.OrthoTransform)
}

func ReadRenderContext(is *bus.InStream) (RenderContext, error) {
	var c RenderContext
	var err error

	if c.PVP, err = readPixelViewport(is); err != nil {
		return c, err
	}
	if c.VP, err = readViewport(is); err != nil {
		return c, err
	}
	if c.Overdraw, err = readPixelViewport(is); err != nil {
		return c, err
	}
	if c.Range.Start, err = is.ReadFloat32(); err != nil {
		return c, err
	}
	if c.Range.End, err = is.ReadFloat32(); err != nil {
		return c, err
	}
	if c.Pixel.X, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Pixel.Y, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Pixel.W, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Pixel.H, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.SubPixel.Index, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.SubPixel.Size, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Zoom.X, err = is.ReadFloat32(); err != nil {
		return c, err
	}
	if c.Zoom.Y, err = is.ReadFloat32(); err != nil {
		return c, err
	}
	if c.Period, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Phase, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.OffsetX, err = is.ReadInt32(); err != nil {
		return c, err
	}
	if c.OffsetY, err = is.ReadInt32(); err != nil {
		return c, err
	}
	var eye uint32
	if eye, err = is.ReadUint32(); err != nil {
		return c, err
	}
	c.Eye = Eye(eye)
	if c.Buffer, err = is.ReadUint32(); err != nil {
		return c, err
	}
	var maskBits uint32
	if maskBits, err = is.ReadUint32(); err != nil {
		return c, err
	}
	c.BufferMask = ColorMaskFromBits(maskBits)
	if c.View, err = bus.ReadObjectVersion(is); err != nil {
		return c, err
	}
	if c.TaskID, err = is.ReadUint32(); err != nil {
		return c, err
	}
	if c.Frustum, err = readFrustum(is); err != nil {
		return c, err
	}
	if c.HeadTransform, err = readMatrix4(is); err != nil {
		return c, err
	}
	if c.Ortho, err = readFrustum(is); err != nil {
		return c, err
	}
	if c.OrthoTransform, err = readMatrix4(is); err != nil {
		return c, err
	}
	return c, nil
}
