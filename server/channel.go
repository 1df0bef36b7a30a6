package server

import (
	"sync"

	"github.com/framewire/framewire/bus"
)

const (
	channelDirtyName = uint64(1 << 0)
	channelDirtyPVP  = uint64(1 << 1)

	channelDirtyAll = channelDirtyName | channelDirtyPVP
)

// Channel is a render viewport on a window, the leaf unit addressed by
// task packets.
type Channel struct {
	core bus.ObjectCore

	mutex  sync.Mutex
	name   string
	pvp    PixelViewport
	window *Window
	view   *View

	lastDrawCompound *Compound
	listeners        int

	near float32
	far  float32
}

func NewChannel() *Channel {
	return &Channel{
		near: 0.1,
		far:  10,
	}
}

// NearFar returns the depth planes used for frustum computation.
func (self *Channel) NearFar() (float32, float32) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.near, self.far
}

func (self *Channel) SetNearFar(near float32, far float32) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.near = near
	self.far = far
}

func (self *Channel) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Channel) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Channel) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(channelDirtyName)
}

// PixelViewport is the channel's native pixel rectangle on its window.
func (self *Channel) PixelViewport() PixelViewport {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.pvp
}

func (self *Channel) SetPixelViewport(pvp PixelViewport) {
	self.mutex.Lock()
	self.pvp = pvp
	self.mutex.Unlock()
	self.core.SetDirty(channelDirtyPVP)
}

func (self *Channel) Window() *Window {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.window
}

func (self *Channel) Pipe() *Pipe {
	if window := self.Window(); window != nil {
		return window.Pipe()
	}
	return nil
}

func (self *Channel) Node() *Node {
	if pipe := self.Pipe(); pipe != nil {
		return pipe.Node()
	}
	return nil
}

func (self *Channel) View() *View {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.view
}

func (self *Channel) SetView(view *View) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.view = view
}

// ViewVersion snapshots the destination view reference for a render
// context. Zero when the channel has no view.
func (self *Channel) ViewVersion() bus.ObjectVersion {
	self.mutex.Lock()
	view := self.view
	self.mutex.Unlock()

	if view == nil {
		return bus.ObjectVersion{}
	}
	return view.Core().ObjectVersion()
}

func (self *Channel) LastDrawCompound() *Compound {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastDrawCompound
}

func (self *Channel) SetLastDrawCompound(compound *Compound) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawCompound = compound
}

func (self *Channel) ResetFrame() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawCompound = nil
}

// HasListeners reports whether load listeners are attached. Draws carry a finish flag
// while any are present so per-draw timings stay measurable.
func (self *Channel) HasListeners() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.listeners > 0
}

func (self *Channel) AddListener() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.listeners += 1
}

func (self *Channel) RemoveListener() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.listeners > 0 {
		self.listeners -= 1
	}
}

func (self *Channel) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&channelDirtyName != 0 {
		os.WriteString(self.name)
	}
	if dirty&channelDirtyPVP != 0 {
		writePixelViewport(os, self.pvp)
	}
}

func (self *Channel) InstanceData(os *bus.OutStream) {
	self.serialize(os, channelDirtyAll)
}

func (self *Channel) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Channel) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&channelDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	if dirty&channelDirtyPVP != 0 {
		if self.pvp, err = readPixelViewport(is); err != nil {
			return err
		}
	}
	return nil
}
