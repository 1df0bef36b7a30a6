package bus

import (
	"github.com/framewire/framewire/wire"
)

// object serialization reads and writes wire streams directly
type OutStream = wire.OutStream
type InStream = wire.InStream

var NewOutStream = wire.NewOutStream
var NewInStream = wire.NewInStream

var ErrShortRead = wire.ErrShortRead
var ErrOutOfSync = wire.ErrOutOfSync
