package server

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/framewire/framewire/bus"
)

const (
	windowDirtyName     = uint64(1 << 0)
	windowDirtyPVP      = uint64(1 << 1)
	windowDirtyDrawable = uint64(1 << 2)

	windowDirtyAll = windowDirtyName | windowDirtyPVP | windowDirtyDrawable
)

// DrawableConfig describes the GL surface of a window.
type DrawableConfig struct {
	Stereo         bool
	Doublebuffered bool
}

// Window is an onscreen or offscreen drawable on a pipe.
type Window struct {
	core bus.ObjectCore

	mutex    sync.Mutex
	name     string
	pvp      PixelViewport
	drawable DrawableConfig
	pipe     *Pipe
	channels []*Channel

	lastDrawChannel *Channel
	maxFPS          float32
}

func NewWindow() *Window {
	return &Window{
		maxFPS: math32.Inf(1),
	}
}

func (self *Window) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Window) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Window) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(windowDirtyName)
}

func (self *Window) PixelViewport() PixelViewport {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.pvp
}

func (self *Window) SetPixelViewport(pvp PixelViewport) {
	self.mutex.Lock()
	self.pvp = pvp
	self.mutex.Unlock()
	self.core.SetDirty(windowDirtyPVP)
}

func (self *Window) DrawableConfig() DrawableConfig {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.drawable
}

func (self *Window) SetDrawableConfig(drawable DrawableConfig) {
	self.mutex.Lock()
	self.drawable = drawable
	self.mutex.Unlock()
	self.core.SetDirty(windowDirtyDrawable)
}

func (self *Window) Pipe() *Pipe {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.pipe
}

func (self *Window) Channels() []*Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Channel{}, self.channels...)
}

func (self *Window) AddChannel(channel *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	channel.window = self
	self.channels = append(self.channels, channel)
}

func (self *Window) LastDrawChannel() *Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastDrawChannel
}

func (self *Window) SetLastDrawChannel(channel *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawChannel = channel
}

// MaxFPS is the frame rate cap coalesced over the compounds drawing into
// this window during the current frame.
func (self *Window) MaxFPS() float32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.maxFPS
}

// CoalesceMaxFPS lowers the cap, keeping the minimum seen this frame.
func (self *Window) CoalesceMaxFPS(maxFPS float32) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if maxFPS < self.maxFPS {
		self.maxFPS = maxFPS
	}
}

// ResetFrame clears the per-frame bookkeeping.
func (self *Window) ResetFrame() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.lastDrawChannel = nil
	self.maxFPS = math32.Inf(1)
}

func writePixelViewport(os *bus.OutStream, pvp PixelViewport) {
	os.WriteInt32(pvp.X)
	os.WriteInt32(pvp.Y)
	os.WriteInt32(pvp.W)
	os.WriteInt32(pvp.H)
}

func readPixelViewport(is *bus.InStream) (PixelViewport, error) {
	var pvp PixelViewport
	var err error
	if pvp.X, err = is.ReadInt32(); err != nil {
		return pvp, err
	}
	if pvp.Y, err = is.ReadInt32(); err != nil {
		return pvp, err
	}
	if pvp.W, err = is.ReadInt32(); err != nil {
		return pvp, err
	}
	pvp.H, err = is.ReadInt32()
	return pvp, err
}

func (self *Window) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&windowDirtyName != 0 {
		os.WriteString(self.name)
	}
	if dirty&windowDirtyPVP != 0 {
		writePixelViewport(os, self.pvp)
	}
	if dirty&windowDirtyDrawable != 0 {
		os.WriteBool(self.drawable.Stereo)
		os.WriteBool(self.drawable.Doublebuffered)
	}
}

func (self *Window) InstanceData(os *bus.OutStream) {
	self.serialize(os, windowDirtyAll)
}

func (self *Window) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Window) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&windowDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	if dirty&windowDirtyPVP != 0 {
		if self.pvp, err = readPixelViewport(is); err != nil {
			return err
		}
	}
	if dirty&windowDirtyDrawable != 0 {
		if self.drawable.Stereo, err = is.ReadBool(); err != nil {
			return err
		}
		if self.drawable.Doublebuffered, err = is.ReadBool(); err != nil {
			return err
		}
	}
	return nil
}
