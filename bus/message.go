package bus

import (
	"encoding/binary"

	"github.com/framewire/framewire/wire"
)

/*
Every buffer exchanged between peers is one framed message:

	<u32 size><u32 command><u32 objectIDHigh><u32 objectIDLow>
	<u32 frameNumber><u128 frameID><payload>

size counts the whole message including the header. The object id is the
routing id of the addressed object. Commands below 64 belong to the object
layer; higher command values are application task packets carried opaquely.
*/

const MessageHeaderSize = 4 + 4 + 8 + 4 + 16

const (
	CmdObjectDelta    = uint32(1)
	CmdObjectMap      = uint32(2)
	CmdObjectInstance = uint32(3)
	CmdObjectUnmap    = uint32(4)

	// commands >= CmdApplication are dispatched to the application handler
	CmdApplication = uint32(64)
)

type Message struct {
	Command     uint32
	ObjectID    uint64
	FrameNumber uint32
	FrameID     Id
	Payload     []byte
}

func (self *Message) Encode() []byte {
	os := wire.NewOutStream()
	os.WriteUint32(uint32(MessageHeaderSize + len(self.Payload)))
	os.WriteUint32(self.Command)
	os.WriteUint32(uint32(self.ObjectID >> 32))
	os.WriteUint32(uint32(self.ObjectID))
	os.WriteUint32(self.FrameNumber)
	os.WriteRaw(self.FrameID.Bytes())
	os.WriteRaw(self.Payload)
	return os.Bytes()
}

func DecodeMessage(b []byte) (*Message, error) {
	if len(b) < MessageHeaderSize {
		return nil, wire.ErrShortRead
	}
	size := binary.LittleEndian.Uint32(b[0:4])
	if int(size) != len(b) {
		return nil, wire.ErrOutOfSync
	}
	message := &Message{
		Command: binary.LittleEndian.Uint32(b[4:8]),
		ObjectID: uint64(binary.LittleEndian.Uint32(b[8:12]))<<32 |
			uint64(binary.LittleEndian.Uint32(b[12:16])),
		FrameNumber: binary.LittleEndian.Uint32(b[16:20]),
		FrameID:     Id(b[20:36]),
		Payload:     b[36:],
	}
	return message, nil
}
