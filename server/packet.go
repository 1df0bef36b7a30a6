package server

import (
	"fmt"

	"github.com/framewire/framewire/bus"
)

// PacketType identifies one task packet kind. Values live in the
// application command range of the bus message header.
type PacketType uint32

const (
	PacketChannelFrameClear = PacketType(bus.CmdApplication + iota)
	PacketChannelFrameDraw
	PacketChannelFrameDrawFinish
	PacketChannelFrameReadback
	PacketChannelFrameTransmit
	PacketChannelFrameAssemble
	PacketChannelFrameViewStart
	PacketChannelFrameViewFinish
	PacketWindowFrameDrawFinish
	PacketPipeFrameDrawFinish
	PacketNodeFrameDrawFinish
)

func (self PacketType) String() string {
	switch self {
	case PacketChannelFrameClear:
		return "channelFrameClear"
	case PacketChannelFrameDraw:
		return "channelFrameDraw"
	case PacketChannelFrameDrawFinish:
		return "channelFrameDrawFinish"
	case PacketChannelFrameReadback:
		return "channelFrameReadback"
	case PacketChannelFrameTransmit:
		return "channelFrameTransmit"
	case PacketChannelFrameAssemble:
		return "channelFrameAssemble"
	case PacketChannelFrameViewStart:
		return "channelFrameViewStart"
	case PacketChannelFrameViewFinish:
		return "channelFrameViewFinish"
	case PacketWindowFrameDrawFinish:
		return "windowFrameDrawFinish"
	case PacketPipeFrameDrawFinish:
		return "pipeFrameDrawFinish"
	case PacketNodeFrameDrawFinish:
		return "nodeFrameDrawFinish"
	default:
		return fmt.Sprintf("packet(%d)", uint32(self))
	}
}

// HasContext reports whether the packet kind carries a render context.
// The draw-finish family carries header fields only.
func (self PacketType) HasContext() bool {
	switch self {
	case PacketChannelFrameDrawFinish, PacketWindowFrameDrawFinish,
		PacketPipeFrameDrawFinish, PacketNodeFrameDrawFinish:
		return false
	default:
		return true
	}
}

// TaskPacket is one addressed rendering instruction. Packets are strictly
// one-way; per addressee the bus preserves emission order.
type TaskPacket struct {
	Type        PacketType
	ObjectID    uint64
	FrameNumber uint32
	FrameID     bus.Id

	// set when Type.HasContext()
	Context RenderContext

	// draw
	Finish bool

	// readback, assemble
	Frames []bus.ObjectVersion

	// transmit
	FrameData    bus.ObjectVersion
	ClientNodeID bus.Id
	NetNodeID    bus.Id
}

// Encode frames the packet as a bus message.
func (self *TaskPacket) Encode() *bus.Message {
	os := bus.NewOutStream()
	if self.Type.HasContext() {
		self.Context.Write(os)
	}
	switch self.Type {
	case PacketChannelFrameDraw:
		os.WriteBool(self.Finish)
	case PacketChannelFrameReadback, PacketChannelFrameAssemble:
		bus.WriteObjectVersions(os, self.Frames)
	case PacketChannelFrameTransmit:
		self.FrameData.Write(os)
		bus.WriteId(os, self.ClientNodeID)
		bus.WriteId(os, self.NetNodeID)
	}
	return &bus.Message{
		Command:     uint32(self.Type),
		ObjectID:    self.ObjectID,
		FrameNumber: self.FrameNumber,
		FrameID:     self.FrameID,
		Payload:     os.Bytes(),
	}
}

// DecodeTaskPacket parses a bus message in the application command range.
func DecodeTaskPacket(message *bus.Message) (*TaskPacket, error) {
	packet := &TaskPacket{
		Type:        PacketType(message.Command),
		ObjectID:    message.ObjectID,
		FrameNumber: message.FrameNumber,
		FrameID:     message.FrameID,
	}

	is := bus.NewInStream(message.Payload)

	var err error
	if packet.Type.HasContext() {
		if packet.Context, err = ReadRenderContext(is); err != nil {
			return nil, err
		}
	}
	switch packet.Type {
	case PacketChannelFrameDraw:
		if packet.Finish, err = is.ReadBool(); err != nil {
			return nil, err
		}
	case PacketChannelFrameReadback, PacketChannelFrameAssemble:
		if packet.Frames, err = bus.ReadObjectVersions(is); err != nil {
			return nil, err
		}
	case PacketChannelFrameTransmit:
		if packet.FrameData, err = bus.ReadObjectVersion(is); err != nil {
			return nil, err
		}
		if packet.ClientNodeID, err = bus.ReadId(is); err != nil {
			return nil, err
		}
		if packet.NetNodeID, err = bus.ReadId(is); err != nil {
			return nil, err
		}
	}
	return packet, nil
}
