package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

/*
Typed binary streams used to move object deltas and task payloads between
cluster peers.

All values are little-endian in their natural width. Strings and slices are
length-prefixed with a uint64 count. The write side may hand its data to the
transport in multiple buffers, but a single logical write of n bytes is never
segmented: a symmetric read on the other end always finds at least n
contiguous bytes in the current buffer.
*/

var ErrShortRead = errors.New("wire: read past end of buffer")
var ErrOutOfSync = errors.New("wire: stream out of sync")

// OutStream accumulates one delta or payload before it is handed to the
// transport as a single buffer.
type OutStream struct {
	buf []byte
}

func NewOutStream() *OutStream {
	return &OutStream{}
}

func (self *OutStream) Bytes() []byte {
	return self.buf
}

func (self *OutStream) Len() int {
	return len(self.buf)
}

func (self *OutStream) WriteBool(v bool) {
	if v {
		self.buf = append(self.buf, 1)
	} else {
		self.buf = append(self.buf, 0)
	}
}

func (self *OutStream) WriteUint32(v uint32) {
	self.buf = binary.LittleEndian.AppendUint32(self.buf, v)
}

func (self *OutStream) WriteInt32(v int32) {
	self.WriteUint32(uint32(v))
}

func (self *OutStream) WriteUint64(v uint64) {
	self.buf = binary.LittleEndian.AppendUint64(self.buf, v)
}

func (self *OutStream) WriteFloat32(v float32) {
	self.WriteUint32(math.Float32bits(v))
}

// WriteRaw appends bytes without a length prefix.
func (self *OutStream) WriteRaw(b []byte) {
	self.buf = append(self.buf, b...)
}

func (self *OutStream) WriteString(s string) {
	self.WriteUint64(uint64(len(s)))
	self.buf = append(self.buf, s...)
}

func (self *OutStream) WriteFloat32Slice(values []float32) {
	self.WriteUint64(uint64(len(values)))
	for _, v := range values {
		self.WriteFloat32(v)
	}
}

func (self *OutStream) WriteUint32Slice(values []uint32) {
	self.WriteUint64(uint64(len(values)))
	for _, v := range values {
		self.WriteUint32(v)
	}
}

// InStream reads back what a peer's OutStream produced. The transport may
// have fragmented the stream into several buffers; reads never span a buffer
// boundary (see the segmentation note above).
type InStream struct {
	buffers [][]byte
	index   int
	pos     int
}

func NewInStream(buffers ...[]byte) *InStream {
	return &InStream{
		buffers: buffers,
	}
}

// HasData returns true if not all data has been read.
func (self *InStream) HasData() bool {
	for i := self.index; i < len(self.buffers); i += 1 {
		p := 0
		if i == self.index {
			p = self.pos
		}
		if p < len(self.buffers[i]) {
			return true
		}
	}
	return false
}

// Read returns the next n bytes from the current buffer. The returned slice
// aliases the buffer and is valid until the buffer is recycled.
func (self *InStream) Read(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	for self.index < len(self.buffers) && self.pos >= len(self.buffers[self.index]) {
		self.index += 1
		self.pos = 0
	}
	if self.index >= len(self.buffers) {
		return nil, ErrShortRead
	}
	buffer := self.buffers[self.index]
	if len(buffer)-self.pos < n {
		// a logical write is never segmented across buffers
		return nil, ErrOutOfSync
	}
	b := buffer[self.pos : self.pos+n]
	self.pos += n
	return b, nil
}

func (self *InStream) ReadBool() (bool, error) {
	b, err := self.Read(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (self *InStream) ReadUint32() (uint32, error) {
	b, err := self.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (self *InStream) ReadInt32() (int32, error) {
	v, err := self.ReadUint32()
	return int32(v), err
}

func (self *InStream) ReadUint64() (uint64, error) {
	b, err := self.Read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (self *InStream) ReadFloat32() (float32, error) {
	v, err := self.ReadUint32()
	return math.Float32frombits(v), err
}

func (self *InStream) ReadString() (string, error) {
	n, err := self.ReadUint64()
	if err != nil {
		return "", err
	}
	b, err := self.Read(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (self *InStream) ReadFloat32Slice() ([]float32, error) {
	n, err := self.ReadUint64()
	if err != nil {
		return nil, err
	}
	values := make([]float32, n)
	for i := range values {
		values[i], err = self.ReadFloat32()
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (self *InStream) ReadUint32Slice() ([]uint32, error) {
	n, err := self.ReadUint64()
	if err != nil {
		return nil, err
	}
	values := make([]uint32, n)
	for i := range values {
		values[i], err = self.ReadUint32()
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}
