package bus

import (
	"errors"
	"fmt"
)

// ErrUnmappedObject reports a packet addressed to an object that is not
// registered or mapped on this local node. The packet is dropped.
var ErrUnmappedObject = errors.New("bus: object not mapped on this node")

// BusError marks a transport failure on a specific peer. The peer is
// disconnected and packets addressed to it are dropped.
type BusError struct {
	Peer Id
	Err  error
}

func (self *BusError) Error() string {
	return fmt.Sprintf("bus: peer %s: %s", self.Peer, self.Err)
}

func (self *BusError) Unwrap() error {
	return self.Err
}

// VersionError reports a sync request ahead of the committed head.
type VersionError struct {
	Requested Version
	Head      Version
}

func (self *VersionError) Error() string {
	return fmt.Sprintf("bus: version %s requested ahead of head %s", self.Requested, self.Head)
}
