package server

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/framewire/framewire/bus"
	"github.com/framewire/framewire/vec"
)

func TestRenderContextRoundTrip(t *testing.T) {
	var head vec.Matrix4
	var ortho vec.Matrix4
	for i := range head {
		head[i] = float32(i)
		ortho[i] = float32(16 + i)
	}

	context := RenderContext{
		PVP:      PixelViewport{X: 10, Y: 20, W: 400, H: 300},
		Overdraw: PixelViewport{X: -5, Y: -5, W: 410, H: 310},
		VP:       Viewport{X: 0.25, Y: 0, W: 0.5, H: 1},
		Range:    Range{Start: 0.125, End: 0.875},
		Pixel:    Pixel{X: 1, Y: 0, W: 2, H: 1},
		SubPixel: SubPixel{Index: 2, Size: 4},
		Zoom:     Zoom{X: 0.5, Y: 0.5},
		Period:   4,
		Phase:    3,
		OffsetX:  10,
		OffsetY:  20,

		Eye:        EyeRight,
		Buffer:     DrawBufferBackRight,
		BufferMask: ColorMask{Green: true, Blue: true},
		View: bus.ObjectVersion{
			ID:      bus.NewId(),
			Version: bus.Version{Lo: 7},
		},
		TaskID: 42,

		Frustum:        vec.Frustum{Left: -1, Right: 1, Bottom: -0.75, Top: 0.75, Near: 0.1, Far: 10},
		HeadTransform:  head,
		Ortho:          vec.Frustum{Left: -1.5, Right: 1.5, Bottom: -1, Top: 1, Near: 0.1, Far: 10},
		OrthoTransform: ortho,
	}

	os := bus.NewOutStream()
	context.Write(os)

	decoded, err := ReadRenderContext(bus.NewInStream(os.Bytes()))
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, context)
}

func TestRenderContextShortRead(t *testing.T) {
	context := RenderContext{
		PVP: PixelViewport{W: 100, H: 100},
		VP:  FullViewport(),
	}
	os := bus.NewOutStream()
	context.Write(os)
	encoded := os.Bytes()

	_, err := ReadRenderContext(bus.NewInStream(encoded[:len(encoded)-8]))
	assert.NotEqual(t, err, nil)
}
