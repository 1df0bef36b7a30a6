package server

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/framewire/framewire/bus"
)

func TestTaskPacketDrawRoundTrip(t *testing.T) {
	packet := &TaskPacket{
		Type:        PacketChannelFrameDraw,
		ObjectID:    42,
		FrameNumber: 7,
		FrameID:     bus.NewId(),
		Context: RenderContext{
			PVP:    PixelViewport{W: 800, H: 600},
			VP:     FullViewport(),
			Range:  FullRange(),
			Zoom:   NoZoom(),
			Eye:    EyeLeft,
			Buffer: DrawBufferBackLeft,
		},
		Finish: true,
	}

	decoded, err := DecodeTaskPacket(packet.Encode())
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, packet)
}

func TestTaskPacketTransmitRoundTrip(t *testing.T) {
	packet := &TaskPacket{
		Type:        PacketChannelFrameTransmit,
		ObjectID:    13,
		FrameNumber: 3,
		FrameID:     bus.NewId(),
		Context: RenderContext{
			PVP: PixelViewport{W: 400, H: 300},
		},
		FrameData: bus.ObjectVersion{
			ID:      bus.NewId(),
			Version: bus.Version{Lo: 9},
		},
		ClientNodeID: bus.NewId(),
		NetNodeID:    bus.NewId(),
	}

	decoded, err := DecodeTaskPacket(packet.Encode())
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, packet)
}

func TestTaskPacketReadbackRoundTrip(t *testing.T) {
	packet := &TaskPacket{
		Type:    PacketChannelFrameReadback,
		FrameID: bus.NewId(),
		Frames: []bus.ObjectVersion{
			{ID: bus.NewId(), Version: bus.Version{Lo: 1}},
			{ID: bus.NewId(), Version: bus.Version{Lo: 2}},
		},
	}

	decoded, err := DecodeTaskPacket(packet.Encode())
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded.Frames, packet.Frames)
}

func TestTaskPacketFinishHasNoPayload(t *testing.T) {
	packet := &TaskPacket{
		Type:        PacketNodeFrameDrawFinish,
		ObjectID:    99,
		FrameNumber: 5,
		FrameID:     bus.NewId(),
	}

	message := packet.Encode()
	assert.Equal(t, len(message.Payload), 0)

	decoded, err := DecodeTaskPacket(message)
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, packet)
}
