package server

import (
	"sync"

	"github.com/framewire/framewire/bus"
)

const (
	frameDirtyName = uint64(1 << 0)
	frameDirtyData = uint64(1 << 1)

	frameDirtyAll = frameDirtyName | frameDirtyData
)

// Frame is the distributed handle of one output image set. The producing
// compound readbacks into it, consuming compounds assemble from it. Per
// eye it references the FrameData version holding the pixels.
type Frame struct {
	core bus.ObjectCore

	mutex        sync.Mutex
	name         string
	dataVersions [NumEyes]bus.ObjectVersion
	node         *Node

	// consumers per eye, server-side planning state
	inputFrames [NumEyes][]*Frame
}

func NewFrame(name string) *Frame {
	return &Frame{
		name: name,
	}
}

func (self *Frame) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Frame) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Frame) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(frameDirtyName)
}

// Node is the render host producing or consuming this frame.
func (self *Frame) Node() *Node {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.node
}

func (self *Frame) SetNode(node *Node) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.node = node
}

// DataVersion returns the FrameData reference for an eye, zero when the
// eye has no data.
func (self *Frame) DataVersion(eye Eye) bus.ObjectVersion {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.dataVersions[eye.Index()]
}

func (self *Frame) SetDataVersion(eye Eye, ov bus.ObjectVersion) {
	self.mutex.Lock()
	self.dataVersions[eye.Index()] = ov
	self.mutex.Unlock()
	self.core.SetDirty(frameDirtyData)
}

// HasData reports whether the eye's data version is set.
func (self *Frame) HasData(eye Eye) bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return !self.dataVersions[eye.Index()].IsZero()
}

// InputFrames lists the consumers of this output frame for an eye.
func (self *Frame) InputFrames(eye Eye) []*Frame {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Frame{}, self.inputFrames[eye.Index()]...)
}

func (self *Frame) AddInputFrame(eye Eye, frame *Frame) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	index := eye.Index()
	self.inputFrames[index] = append(self.inputFrames[index], frame)
}

func (self *Frame) ClearInputFrames() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	for i := range self.inputFrames {
		self.inputFrames[i] = nil
	}
}

func (self *Frame) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&frameDirtyName != 0 {
		os.WriteString(self.name)
	}
	if dirty&frameDirtyData != 0 {
		for _, ov := range self.dataVersions {
			ov.Write(os)
		}
	}
}

func (self *Frame) InstanceData(os *bus.OutStream) {
	self.serialize(os, frameDirtyAll)
}

func (self *Frame) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Frame) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&frameDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	if dirty&frameDirtyData != 0 {
		for i := range self.dataVersions {
			if self.dataVersions[i], err = bus.ReadObjectVersion(is); err != nil {
				return err
			}
		}
	}
	return nil
}

// Frame buffer attachments captured by a readback.
const (
	FrameBufferColor = uint32(0x01)
	FrameBufferDepth = uint32(0x02)
)

const (
	frameDataDirtyPVP     = uint64(1 << 0)
	frameDataDirtyBuffers = uint64(1 << 1)
	frameDataDirtyReady   = uint64(1 << 2)

	frameDataDirtyAll = frameDataDirtyPVP | frameDataDirtyBuffers |
		frameDataDirtyReady
)

// FrameData describes the renderable payload of a frame: the captured
// rectangle, which buffer attachments it holds and per-eye readiness.
type FrameData struct {
	core bus.ObjectCore

	mutex   sync.Mutex
	pvp     PixelViewport
	buffers uint32
	ready   [NumEyes]bool
}

func NewFrameData() *FrameData {
	return &FrameData{
		buffers: FrameBufferColor,
	}
}

func (self *FrameData) Core() *bus.ObjectCore {
	return &self.core
}

func (self *FrameData) PixelViewport() PixelViewport {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.pvp
}

func (self *FrameData) SetPixelViewport(pvp PixelViewport) {
	self.mutex.Lock()
	self.pvp = pvp
	self.mutex.Unlock()
	self.core.SetDirty(frameDataDirtyPVP)
}

func (self *FrameData) Buffers() uint32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.buffers
}

func (self *FrameData) SetBuffers(buffers uint32) {
	self.mutex.Lock()
	self.buffers = buffers
	self.mutex.Unlock()
	self.core.SetDirty(frameDataDirtyBuffers)
}

func (self *FrameData) IsReady(eye Eye) bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.ready[eye.Index()]
}

func (self *FrameData) SetReady(eye Eye, ready bool) {
	self.mutex.Lock()
	self.ready[eye.Index()] = ready
	self.mutex.Unlock()
	self.core.SetDirty(frameDataDirtyReady)
}

func (self *FrameData) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&frameDataDirtyPVP != 0 {
		writePixelViewport(os, self.pvp)
	}
	if dirty&frameDataDirtyBuffers != 0 {
		os.WriteUint32(self.buffers)
	}
	if dirty&frameDataDirtyReady != 0 {
		for _, ready := range self.ready {
			os.WriteBool(ready)
		}
	}
}

func (self *FrameData) InstanceData(os *bus.OutStream) {
	self.serialize(os, frameDataDirtyAll)
}

func (self *FrameData) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *FrameData) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&frameDataDirtyPVP != 0 {
		if self.pvp, err = readPixelViewport(is); err != nil {
			return err
		}
	}
	if dirty&frameDataDirtyBuffers != 0 {
		if self.buffers, err = is.ReadUint32(); err != nil {
			return err
		}
	}
	if dirty&frameDataDirtyReady != 0 {
		for i := range self.ready {
			if self.ready[i], err = is.ReadBool(); err != nil {
				return err
			}
		}
	}
	return nil
}
