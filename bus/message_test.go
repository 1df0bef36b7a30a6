package bus

import (
	"encoding/binary"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestMessageHeaderLayout(t *testing.T) {
	frameID := NewId()
	message := &Message{
		Command:     CmdApplication + 1,
		ObjectID:    0x0102030405060708,
		FrameNumber: 42,
		FrameID:     frameID,
		Payload:     []byte{9, 9, 9},
	}

	b := message.Encode()
	assert.Equal(t, len(b), MessageHeaderSize+3)
	assert.Equal(t, binary.LittleEndian.Uint32(b[0:4]), uint32(len(b)))
	assert.Equal(t, binary.LittleEndian.Uint32(b[4:8]), CmdApplication+1)
	assert.Equal(t, binary.LittleEndian.Uint32(b[8:12]), uint32(0x01020304))
	assert.Equal(t, binary.LittleEndian.Uint32(b[12:16]), uint32(0x05060708))
	assert.Equal(t, binary.LittleEndian.Uint32(b[16:20]), uint32(42))

	decoded, err := DecodeMessage(b)
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded.Command, message.Command)
	assert.Equal(t, decoded.ObjectID, message.ObjectID)
	assert.Equal(t, decoded.FrameNumber, message.FrameNumber)
	assert.Equal(t, decoded.FrameID, frameID)
	assert.Equal(t, decoded.Payload, message.Payload)
}

func TestDecodeMessageBadSize(t *testing.T) {
	_, err := DecodeMessage([]byte{1, 2, 3})
	assert.Equal(t, err, ErrShortRead)

	message := &Message{Command: CmdObjectDelta}
	b := message.Encode()
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(b)+1))
	_, err = DecodeMessage(b)
	assert.Equal(t, err, ErrOutOfSync)
}
