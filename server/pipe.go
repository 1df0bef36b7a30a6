package server

import (
	"sync"

	"github.com/framewire/framewire/bus"
)

const (
	pipeDirtyName = uint64(1 << 0)

	pipeDirtyAll = pipeDirtyName
)

// Pipe is one GPU context on a node, serialized by a single render
// thread on the client.
type Pipe struct {
	core bus.ObjectCore

	mutex   sync.Mutex
	name    string
	node    *Node
	windows []*Window

	lastDrawWindow *Window
}

func NewPipe() *Pipe {
	return &Pipe{}
}

func (self *Pipe) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Pipe) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Pipe) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(pipeDirtyName)
}

func (self *Pipe) Node() *Node {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.node
}

func (self *Pipe) Windows() []*Window {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Window{}, self.windows...)
}

func (self *Pipe) AddWindow(window *Window) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	window.pipe = self
	self.windows = append(self.windows, window)
}

func (self *Pipe) LastDrawWindow() *Window {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastDrawWindow
}

func (self *Pipe) SetLastDrawWindow(window *Window) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawWindow = window
}

func (self *Pipe) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&pipeDirtyName != 0 {
		os.WriteString(self.name)
	}
}

func (self *Pipe) InstanceData(os *bus.OutStream) {
	self.serialize(os, pipeDirtyAll)
}

func (self *Pipe) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Pipe) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&pipeDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	return nil
}
