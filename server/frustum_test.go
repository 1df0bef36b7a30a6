package server

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/framewire/framewire/vec"
)

func assertNear(t *testing.T, got float32, expected float32) {
	t.Helper()
	diff := got - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > 1e-4 {
		t.Fatalf("got %f, expected %f", got, expected)
	}
}

func TestFrustumCentered(t *testing.T) {
	data := FrustumData{Width: 4, Height: 3}
	eye := vec.V3(0, 0, 1)

	f := frustumCorners(
		data, eye, false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)

	assertNear(t, f.Left, -2*0.1)
	assertNear(t, f.Right, 2*0.1)
	assertNear(t, f.Bottom, -1.5*0.1)
	assertNear(t, f.Top, 1.5*0.1)
	assert.Equal(t, f.Near, float32(0.1))
	assert.Equal(t, f.Far, float32(10))
}

func TestFrustumOffAxis(t *testing.T) {
	data := FrustumData{Width: 4, Height: 3}
	eye := vec.V3(0.5, -0.25, 2)

	f := frustumCorners(
		data, eye, false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)

	ratio := float32(0.1) / 2
	assertNear(t, f.Left, (-2-0.5)*ratio)
	assertNear(t, f.Right, (2-0.5)*ratio)
	assertNear(t, f.Bottom, (-1.5+0.25)*ratio)
	assertNear(t, f.Top, (1.5+0.25)*ratio)
}

func TestFrustumEyeBehindSurfaceMirrors(t *testing.T) {
	data := FrustumData{Width: 4, Height: 3}

	front := frustumCorners(
		data, vec.V3(0.5, 0.25, 1), false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)
	behind := frustumCorners(
		data, vec.V3(0.5, 0.25, -1), false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)

	// the mirrored frustum swaps the horizontal extents
	assertNear(t, behind.Left, -front.Right)
	assertNear(t, behind.Right, -front.Left)
	assertNear(t, behind.Bottom, front.Bottom)
	assertNear(t, behind.Top, front.Top)
	assert.Equal(t, behind.Left < behind.Right, true)
}

func TestFrustumOrtho(t *testing.T) {
	data := FrustumData{Width: 4, Height: 3}

	f := frustumCorners(
		data, vec.V3(0.5, 0, 2), true, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)

	// orthographic corners are the surface extents around the eye
	assertNear(t, f.Left, -2.5)
	assertNear(t, f.Right, 1.5)
	assertNear(t, f.Bottom, -1.5)
	assertNear(t, f.Top, 1.5)
}

func TestFrustumViewportScaling(t *testing.T) {
	data := FrustumData{Width: 4, Height: 3}
	full := frustumCorners(
		data, vec.V3(0, 0, 1), false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(), FullViewport(),
	)
	left := frustumCorners(
		data, vec.V3(0, 0, 1), false, 0.1, 10,
		PixelViewport{W: 800, H: 600}, AllPixels(),
		Viewport{X: 0, Y: 0, W: 0.5, H: 1},
	)

	assertNear(t, left.Left, full.Left)
	assertNear(t, left.Right, (full.Left+full.Right)/2)
	assertNear(t, left.Bottom, full.Bottom)
	assertNear(t, left.Top, full.Top)
}

func TestHeadTransformFoldsEye(t *testing.T) {
	xfm := vec.Identity4()
	eye := vec.V3(1, 2, 3)

	result := headTransform(xfm, eye)

	// for an affine transform only the translation column moves
	assertNear(t, result.At(0, 3), -1)
	assertNear(t, result.At(1, 3), -2)
	assertNear(t, result.At(2, 3), -3)
	assertNear(t, result.At(0, 0), 1)
	assertNear(t, result.At(1, 1), 1)
	assertNear(t, result.At(2, 2), 1)
	assertNear(t, result.At(3, 3), 1)
}

func TestFrustumEyePositionStereo(t *testing.T) {
	view := NewView()
	view.SetEyeBase(0.06)

	left := frustumEyePosition(view, nil, FrustumFixed, EyeLeft)
	right := frustumEyePosition(view, nil, FrustumFixed, EyeRight)
	cyclop := frustumEyePosition(view, nil, FrustumFixed, EyeCyclop)

	assertNear(t, left.X, -0.03)
	assertNear(t, right.X, 0.03)
	assert.Equal(t, cyclop, vec.Vector3{})

	// a tracked observer overrides the static derivation
	observer := NewObserver()
	observer.SetEyePosition(EyeLeft, vec.V3(-0.04, 1.7, 0.1))
	tracked := frustumEyePosition(view, observer, FrustumFixed, EyeLeft)
	assert.Equal(t, tracked, vec.V3(-0.04, 1.7, 0.1))

	// but not on head-mounted surfaces
	hmd := frustumEyePosition(view, observer, FrustumHMD, EyeLeft)
	assertNear(t, hmd.X, -0.03)
}

func TestUpdateContextFrustumWall(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 800, H: 600})
	view := NewView()
	view.SetWall(Wall{
		BottomLeft:  vec.V3(-2, -1.5, -1),
		BottomRight: vec.V3(2, -1.5, -1),
		TopLeft:     vec.V3(-2, 1.5, -1),
	})
	channel.SetView(view)
	channel.SetNearFar(0.1, 10)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	var context RenderContext
	err = updateContextFrustum(&context, compound, EyeCyclop)
	assert.Equal(t, err, nil)

	// eye at the world origin, one unit in front of the wall
	assertNear(t, context.Frustum.Left, -2*0.1)
	assertNear(t, context.Frustum.Right, 2*0.1)
	assertNear(t, context.Frustum.Bottom, -1.5*0.1)
	assertNear(t, context.Frustum.Top, 1.5*0.1)

	// folding the eye position cancels the wall translation
	assert.Equal(t, context.HeadTransform, vec.Identity4())

	assertNear(t, context.Ortho.Left, -2)
	assertNear(t, context.Ortho.Right, 2)
	assert.Equal(t, context.OrthoTransform, context.HeadTransform)
}

func TestUpdateContextFrustumEyeInPlane(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 800, H: 600})
	view := NewView()
	// surface through the eye position
	view.SetWall(Wall{
		BottomLeft:  vec.V3(-2, -1.5, 0),
		BottomRight: vec.V3(2, -1.5, 0),
		TopLeft:     vec.V3(-2, 1.5, 0),
	})
	channel.SetView(view)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	var context RenderContext
	err = updateContextFrustum(&context, compound, EyeCyclop)
	_, ok := err.(*ConfigError)
	assert.Equal(t, ok, true)
}
