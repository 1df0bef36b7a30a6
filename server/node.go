package server

import (
	"sync"

	"github.com/framewire/framewire/bus"
)

const (
	nodeDirtyName = uint64(1 << 0)
	nodeDirtyNet  = uint64(1 << 1)

	nodeDirtyAll = nodeDirtyName | nodeDirtyNet
)

// Node is one render host in the cluster. It owns pipes and carries the
// bus identity of the render client process serving it.
type Node struct {
	core bus.ObjectCore

	mutex     sync.Mutex
	name      string
	netNodeID bus.Id
	pipes     []*Pipe

	// frame bookkeeping, server side only
	lastDrawPipe *Pipe
}

func NewNode() *Node {
	return &Node{}
}

func (self *Node) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Node) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Node) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(nodeDirtyName)
}

// NetNodeID is the bus identity of the render client hosting this node.
func (self *Node) NetNodeID() bus.Id {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.netNodeID
}

func (self *Node) SetNetNodeID(id bus.Id) {
	self.mutex.Lock()
	self.netNodeID = id
	self.mutex.Unlock()
	self.core.SetDirty(nodeDirtyNet)
}

func (self *Node) Pipes() []*Pipe {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Pipe{}, self.pipes...)
}

func (self *Node) AddPipe(pipe *Pipe) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	pipe.node = self
	self.pipes = append(self.pipes, pipe)
}

func (self *Node) LastDrawPipe() *Pipe {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastDrawPipe
}

func (self *Node) SetLastDrawPipe(pipe *Pipe) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawPipe = pipe
}

func (self *Node) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&nodeDirtyName != 0 {
		os.WriteString(self.name)
	}
	if dirty&nodeDirtyNet != 0 {
		bus.WriteId(os, self.netNodeID)
	}
}

func (self *Node) InstanceData(os *bus.OutStream) {
	self.serialize(os, nodeDirtyAll)
}

func (self *Node) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Node) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&nodeDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	if dirty&nodeDirtyNet != 0 {
		if self.netNodeID, err = bus.ReadId(is); err != nil {
			return err
		}
	}
	return nil
}
