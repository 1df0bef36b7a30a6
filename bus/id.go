package bus

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/framewire/framewire/wire"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func RequireIdFromBytes(idBytes []byte) Id {
	id, err := IdFromBytes(idBytes)
	if err != nil {
		panic(err)
	}
	return id
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func (self Id) IsZero() bool {
	return self == Id{}
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

// Routing is the compact wire identity carried in packet headers. The random
// tail of the ulid keeps collisions out of a single session's id space;
// registration rejects the degenerate case.
func (self Id) Routing() uint64 {
	return binary.BigEndian.Uint64(self[8:16])
}

func (self Id) String() string {
	return encodeUuid(self)
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

// Version is the 128-bit monotonic commit counter of a distributed object.
// comparable
type Version struct {
	Hi uint64
	Lo uint64
}

// VersionHead syncs a master object to its latest committed version.
var VersionHead = Version{Hi: ^uint64(0), Lo: ^uint64(0)}

func (self Version) IsZero() bool {
	return self == Version{}
}

func (self Version) Next() Version {
	next := Version{Hi: self.Hi, Lo: self.Lo + 1}
	if next.Lo == 0 {
		next.Hi += 1
	}
	return next
}

func (self Version) Less(other Version) bool {
	if self.Hi != other.Hi {
		return self.Hi < other.Hi
	}
	return self.Lo < other.Lo
}

func (self Version) String() string {
	if self == VersionHead {
		return "HEAD"
	}
	if self.Hi == 0 {
		return fmt.Sprintf("%d", self.Lo)
	}
	return fmt.Sprintf("%d:%d", self.Hi, self.Lo)
}

func WriteId(os *wire.OutStream, id Id) {
	os.WriteRaw(id[0:16])
}

func ReadId(is *wire.InStream) (Id, error) {
	b, err := is.Read(16)
	if err != nil {
		return Id{}, err
	}
	return Id(b), nil
}

func WriteVersion(os *wire.OutStream, v Version) {
	os.WriteUint64(v.Lo)
	os.WriteUint64(v.Hi)
}

func ReadVersion(is *wire.InStream) (Version, error) {
	lo, err := is.ReadUint64()
	if err != nil {
		return Version{}, err
	}
	hi, err := is.ReadUint64()
	if err != nil {
		return Version{}, err
	}
	return Version{Hi: hi, Lo: lo}, nil
}

// ObjectVersion is a serialized reference to a distributed object pinned at a
// version.
// comparable
type ObjectVersion struct {
	ID      Id
	Version Version
}

func (self ObjectVersion) IsZero() bool {
	return self.ID.IsZero()
}

func (self ObjectVersion) Write(os *wire.OutStream) {
	WriteId(os, self.ID)
	WriteVersion(os, self.Version)
}

func ReadObjectVersion(is *wire.InStream) (ObjectVersion, error) {
	id, err := ReadId(is)
	if err != nil {
		return ObjectVersion{}, err
	}
	version, err := ReadVersion(is)
	if err != nil {
		return ObjectVersion{}, err
	}
	return ObjectVersion{ID: id, Version: version}, nil
}

func WriteObjectVersions(os *wire.OutStream, versions []ObjectVersion) {
	os.WriteUint64(uint64(len(versions)))
	for _, v := range versions {
		v.Write(os)
	}
}

func ReadObjectVersions(is *wire.InStream) ([]ObjectVersion, error) {
	n, err := is.ReadUint64()
	if err != nil {
		return nil, err
	}
	versions := make([]ObjectVersion, n)
	for i := range versions {
		versions[i], err = ReadObjectVersion(is)
		if err != nil {
			return nil, err
		}
	}
	return versions, nil
}
