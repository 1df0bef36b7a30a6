package server

import (
	"github.com/framewire/framewire/vec"
)

// frustumEyePosition resolves the world-space eye position for one eye
// pass. Tracked observers override the static eye-base derivation on
// fixed surfaces.
func frustumEyePosition(view *View, observer *Observer, kind FrustumKind, eye Eye) vec.Vector3 {
	if observer != nil && observer.HasEyePositions() && kind == FrustumFixed {
		return observer.EyePosition(eye)
	}

	var eyeBase float32
	if view != nil {
		eyeBase = view.EyeBase()
	}
	if observer != nil && observer.EyeBase() != 0 {
		eyeBase = observer.EyeBase()
	}

	switch eye {
	case EyeLeft:
		return vec.V3(-eyeBase/2, 0, 0)
	case EyeRight:
		return vec.V3(eyeBase/2, 0, 0)
	default:
		return vec.Vector3{}
	}
}

// frustumCorners computes the off-axis frustum for an eye positioned in
// wall coordinates. The surface is centered at the origin of the z = 0
// plane; an eye in front of it has positive z. The corners are then
// jittered for pixel decomposition and scaled to the inherited viewport
// sub-rectangle.
func frustumCorners(
	data FrustumData,
	eyeWall vec.Vector3,
	ortho bool,
	near float32,
	far float32,
	destPVP PixelViewport,
	pixel Pixel,
	vp Viewport,
) vec.Frustum {
	w := data.Width / 2
	h := data.Height / 2

	ratio := float32(1)
	if !ortho {
		ratio = near / eyeWall.Z
	}

	var f vec.Frustum
	f.Near = near
	f.Far = far
	if eyeWall.Z > 0 || ortho {
		f.Left = (-w - eyeWall.X) * ratio
		f.Right = (w - eyeWall.X) * ratio
		f.Bottom = (-h - eyeWall.Y) * ratio
		f.Top = (h - eyeWall.Y) * ratio
	} else {
		// eye behind the surface, mirror the frustum
		f.Left = (w - eyeWall.X) * ratio
		f.Right = (-w - eyeWall.X) * ratio
		f.Bottom = (h + eyeWall.Y) * ratio
		f.Top = (-h + eyeWall.Y) * ratio
	}

	if pixel.IsValid() && pixel.W > 1 {
		frustumWidth := f.Right - f.Left
		pixelWidth := frustumWidth / float32(destPVP.W)
		jitter := pixelWidth*float32(pixel.X) - pixelWidth*0.5
		f.Left += jitter
		f.Right += jitter
	}
	if pixel.IsValid() && pixel.H > 1 {
		frustumHeight := f.Bottom - f.Top
		pixelHeight := frustumHeight / float32(destPVP.H)
		jitter := pixelHeight*float32(pixel.Y) + pixelHeight*0.5
		f.Top -= jitter
		f.Bottom -= jitter
	}

	if vp.IsValid() && !vp.IsFull() {
		frustumWidth := f.Right - f.Left
		f.Left += frustumWidth * vp.X
		f.Right = f.Left + frustumWidth*vp.W
		frustumHeight := f.Top - f.Bottom
		f.Bottom += frustumHeight * vp.Y
		f.Top = f.Bottom + frustumHeight*vp.H
	}

	return f
}

// headTransform folds the eye offset into the world-to-wall matrix so
// the projection origin moves with the eye.
func headTransform(xfm vec.Matrix4, eyeWall vec.Vector3) vec.Matrix4 {
	var result vec.Matrix4
	eye := [3]float32{eyeWall.X, eyeWall.Y, eyeWall.Z}
	for i := 0; i < 16; i += 4 {
		for k := 0; k < 3; k += 1 {
			result[i+k] = xfm[i+k] - eye[k]*xfm[i+3]
		}
		result[i+3] = xfm[i+3]
	}
	return result
}

// updateContextFrustum fills the perspective and ortho projection state
// of a render context from the compound's inherited surface and the
// destination channel's view. An eye on the surface plane has no
// perspective projection.
func updateContextFrustum(context *RenderContext, compound *Compound, eye Eye) error {
	inherit := compound.Inherit()
	channel := inherit.Channel
	data := compound.FrustumData()
	if channel == nil || data.Width == 0 || data.Height == 0 {
		return nil
	}

	view := channel.View()
	var observer *Observer
	if view != nil {
		observer = view.Observer()
	}

	near, far := channel.NearFar()
	destPVP := channel.PixelViewport()

	eyeWorld := frustumEyePosition(view, observer, data.Kind, eye)
	eyeWall := data.Transform.TransformPoint(eyeWorld)
	if eyeWall.Z == 0 {
		location := compound.Name
		if location == "" {
			location = "compound"
		}
		return NewConfigError(location, "eye %s in the surface plane", eye)
	}

	context.Frustum = frustumCorners(
		data, eyeWall, false, near, far, destPVP, inherit.Pixel, inherit.Viewport,
	)

	xfm := headTransform(data.Transform, eyeWall)

	cyclopWorld := frustumEyePosition(view, observer, data.Kind, EyeCyclop)
	cyclopWall := data.Transform.TransformPoint(cyclopWorld)

	context.Ortho = frustumCorners(
		data, cyclopWall, true, near, far, destPVP, inherit.Pixel, inherit.Viewport,
	)

	// shear the stereo ortho view toward the cyclop eye
	orthoXfm := xfm
	orthoXfm[8] += (cyclopWall.X - eyeWall.X) / eyeWall.Z
	orthoXfm[9] += (cyclopWall.Y - eyeWall.Y) / eyeWall.Z

	if data.Kind == FrustumHMD && observer != nil {
		inverseHead := observer.InverseHeadMatrix()
		xfm = xfm.Mul(inverseHead)
		orthoXfm = orthoXfm.Mul(inverseHead)
	}
	context.HeadTransform = xfm
	context.OrthoTransform = orthoXfm
	return nil
}
