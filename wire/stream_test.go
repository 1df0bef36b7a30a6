package wire

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestStreamRoundTrip(t *testing.T) {
	os := NewOutStream()
	os.WriteBool(true)
	os.WriteUint32(0xdeadbeef)
	os.WriteInt32(-42)
	os.WriteUint64(1 << 40)
	os.WriteFloat32(3.5)
	os.WriteString("front buffer")
	os.WriteFloat32Slice([]float32{0.25, -1, 2})
	os.WriteUint32Slice([]uint32{7, 8})

	is := NewInStream(os.Bytes())

	b, err := is.ReadBool()
	assert.Equal(t, err, nil)
	assert.Equal(t, b, true)

	u32, err := is.ReadUint32()
	assert.Equal(t, err, nil)
	assert.Equal(t, u32, uint32(0xdeadbeef))

	i32, err := is.ReadInt32()
	assert.Equal(t, err, nil)
	assert.Equal(t, i32, int32(-42))

	u64, err := is.ReadUint64()
	assert.Equal(t, err, nil)
	assert.Equal(t, u64, uint64(1)<<40)

	f, err := is.ReadFloat32()
	assert.Equal(t, err, nil)
	assert.Equal(t, f, float32(3.5))

	s, err := is.ReadString()
	assert.Equal(t, err, nil)
	assert.Equal(t, s, "front buffer")

	fs, err := is.ReadFloat32Slice()
	assert.Equal(t, err, nil)
	assert.Equal(t, fs, []float32{0.25, -1, 2})

	us, err := is.ReadUint32Slice()
	assert.Equal(t, err, nil)
	assert.Equal(t, us, []uint32{7, 8})

	assert.Equal(t, is.HasData(), false)
	_, err = is.ReadUint32()
	assert.Equal(t, err, ErrShortRead)
}

func TestStreamMultipleBuffers(t *testing.T) {
	first := NewOutStream()
	first.WriteUint32(1)
	second := NewOutStream()
	second.WriteUint32(2)
	second.WriteUint32(3)

	is := NewInStream(first.Bytes(), second.Bytes())

	for want := uint32(1); want <= 3; want += 1 {
		v, err := is.ReadUint32()
		assert.Equal(t, err, nil)
		assert.Equal(t, v, want)
	}
	assert.Equal(t, is.HasData(), false)
}

func TestStreamNeverSpansBuffers(t *testing.T) {
	// two bytes left in the first buffer, a four byte read must not
	// borrow from the second
	is := NewInStream([]byte{1, 2}, []byte{3, 4, 5, 6})

	_, err := is.ReadUint32()
	assert.Equal(t, err, ErrOutOfSync)
}

func TestStreamEmptyString(t *testing.T) {
	os := NewOutStream()
	os.WriteString("")

	is := NewInStream(os.Bytes())
	s, err := is.ReadString()
	assert.Equal(t, err, nil)
	assert.Equal(t, s, "")
	assert.Equal(t, is.HasData(), false)
}
