package server

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/framewire/framewire/bus"
)

type ConfigSettings struct {
	// wall-time limit for one frame before it is abandoned
	FrameTimeout time.Duration
	// eye passes the whole configuration may use
	ActiveEyes Eye
}

func DefaultConfigSettings() *ConfigSettings {
	return &ConfigSettings{
		FrameTimeout: 10 * time.Second,
		ActiveEyes:   EyesAll,
	}
}

const (
	configDirtyName  = uint64(1 << 0)
	configDirtyFrame = uint64(1 << 1)

	configDirtyAll = configDirtyName | configDirtyFrame
)

// Config is the server-side rendering plan: the entity hierarchy, the
// compound tree and the per-frame orchestration loop. One logical
// goroutine advances frames; bus I/O runs on its own goroutines and is
// reached only through non-blocking sends.
type Config struct {
	core bus.ObjectCore

	settings  *ConfigSettings
	localNode *bus.LocalNode

	mutex     sync.Mutex
	name      string
	nodes     []*Node
	views     []*View
	observers []*Observer
	frames    []*Frame
	tree      *CompoundTree

	frameNumber  uint32
	frameID      bus.Id
	inheritDirty bool

	// render clients that still owe a finish for the current frame
	pendingNodes map[bus.Id]bool
	monitor      *bus.Monitor
}

func NewConfig(localNode *bus.LocalNode, settings *ConfigSettings) *Config {
	return &Config{
		settings:     settings,
		localNode:    localNode,
		tree:         NewCompoundTree(),
		inheritDirty: true,
		pendingNodes: map[bus.Id]bool{},
		monitor:      bus.NewMonitor(),
	}
}

func NewConfigWithDefaults(localNode *bus.LocalNode) *Config {
	return NewConfig(localNode, DefaultConfigSettings())
}

func (self *Config) Core() *bus.ObjectCore {
	return &self.core
}

func (self *Config) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *Config) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(configDirtyName)
}

func (self *Config) Tree() *CompoundTree {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.tree
}

func (self *Config) Nodes() []*Node {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Node{}, self.nodes...)
}

func (self *Config) AddNode(node *Node) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.nodes = append(self.nodes, node)
}

func (self *Config) AddView(view *View) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.views = append(self.views, view)
}

func (self *Config) AddObserver(observer *Observer) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.observers = append(self.observers, observer)
}

func (self *Config) AddFrame(frame *Frame) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.frames = append(self.frames, frame)
}

func (self *Config) FrameNumber() uint32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.frameNumber
}

// InvalidateInherit forces inheritance resolution at the next frame.
// Call after mutating the compound tree or entity geometry.
func (self *Config) InvalidateInherit() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.inheritDirty = true
}

// destinationChannels lists the distinct inherited destination channels
// of the compound tree in compound index order of first appearance.
func (self *Config) destinationChannels() []*Channel {
	channels := []*Channel{}
	seen := map[*Channel]bool{}
	for i := 0; i < self.tree.Len(); i += 1 {
		channel := self.tree.Compound(i).Inherit().Channel
		if channel != nil && !seen[channel] {
			seen[channel] = true
			channels = append(channels, channel)
		}
	}
	return channels
}

func (self *Config) resetFrameBookkeeping() {
	for _, node := range self.nodes {
		node.SetLastDrawPipe(nil)
		for _, pipe := range node.Pipes() {
			pipe.SetLastDrawWindow(nil)
			for _, window := range pipe.Windows() {
				window.ResetFrame()
				for _, channel := range window.Channels() {
					channel.ResetFrame()
				}
			}
		}
	}
}

// planLastDrawers records, per window, pipe and node, the entity that
// draws last in the order the frame visits channels (destinationChannels
// order) so the finish cascade terminates at the true last drawer.
func (self *Config) planLastDrawers() {
	for _, channel := range self.destinationChannels() {
		draws := false
		for i := 0; i < self.tree.Len(); i += 1 {
			compound := self.tree.Compound(i)
			if compound.IsLeaf() && compound.TestInheritTask(TaskDraw) &&
				compound.Inherit().Channel == channel &&
				compound.Inherit().Eyes&self.settings.ActiveEyes != 0 {
				draws = true
			}
		}
		if !draws {
			continue
		}
		window := channel.Window()
		if window == nil {
			continue
		}
		window.SetLastDrawChannel(channel)
		pipe := window.Pipe()
		if pipe == nil {
			continue
		}
		pipe.SetLastDrawWindow(window)
		if node := pipe.Node(); node != nil {
			node.SetLastDrawPipe(pipe)
		}
	}
}

// StartFrame advances to the next frame and emits all task packets for
// it. Returns the new frame number.
func (self *Config) StartFrame(frameID bus.Id) (uint32, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.frameNumber += 1
	self.frameID = frameID
	self.core.SetDirty(configDirtyFrame)

	if self.inheritDirty {
		if err := self.tree.UpdateInherit(self.settings.ActiveEyes); err != nil {
			return self.frameNumber, err
		}
		self.inheritDirty = false
	}

	self.resetFrameBookkeeping()
	self.planLastDrawers()

	glog.V(1).Infof(
		"[config]start frame %d %s\n",
		self.frameNumber, frameID,
	)

	for busId := range self.pendingNodes {
		delete(self.pendingNodes, busId)
	}

	for _, eye := range []Eye{EyeCyclop, EyeLeft, EyeRight} {
		if self.settings.ActiveEyes&eye == 0 {
			continue
		}
		for _, channel := range self.destinationChannels() {
			visitor := NewChannelUpdateVisitor(
				channel, frameID, self.frameNumber, eye,
			)
			self.tree.AcceptAll(visitor)
			self.sendPackets(channel, visitor.Packets())
		}
	}

	return self.frameNumber, nil
}

func (self *Config) sendPackets(channel *Channel, packets []*TaskPacket) {
	node := channel.Node()
	if node == nil {
		return
	}
	netNodeID := node.NetNodeID()

	for _, packet := range packets {
		if packet.Type == PacketNodeFrameDrawFinish {
			self.pendingNodes[netNodeID] = true
		}
		self.localNode.Send(netNodeID, packet.Encode())
	}
}

// FrameFinished records a render client's completion of the current
// frame. The client echoes its NodeFrameDrawFinish packet back to the
// server, addressed by the node entity's routing id. Wired to the
// application packet handler of the server bus.
func (self *Config) FrameFinished(nodeObjectID uint64, frameNumber uint32) {
	self.mutex.Lock()
	if frameNumber != self.frameNumber {
		self.mutex.Unlock()
		return
	}
	for _, node := range self.nodes {
		if node.Core().ID().Routing() == nodeObjectID {
			delete(self.pendingNodes, node.NetNodeID())
			break
		}
	}
	remaining := len(self.pendingNodes)
	self.mutex.Unlock()

	if remaining == 0 {
		self.monitor.NotifyAll()
	}
}

// FinishFrame waits for every participating render client to finish the
// current frame. An abandoned frame is logged and does not block later
// frames.
func (self *Config) FinishFrame(ctx context.Context) bool {
	deadline := time.Now().Add(self.settings.FrameTimeout)

	for {
		self.mutex.Lock()
		remaining := len(self.pendingNodes)
		frameNumber := self.frameNumber
		self.mutex.Unlock()

		if remaining == 0 {
			return true
		}
		if time.Now().After(deadline) {
			glog.Warningf(
				"[config]abandon frame %d with %d nodes pending\n",
				frameNumber, remaining,
			)
			self.mutex.Lock()
			for busId := range self.pendingNodes {
				delete(self.pendingNodes, busId)
			}
			self.mutex.Unlock()
			return false
		}

		notify := self.monitor.NotifyChannel()
		select {
		case <-ctx.Done():
			return false
		case <-notify:
		case <-time.After(time.Until(deadline)):
		}
	}
}

func (self *Config) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint64(dirty)
	if dirty&configDirtyName != 0 {
		os.WriteString(self.name)
	}
	if dirty&configDirtyFrame != 0 {
		os.WriteUint32(self.frameNumber)
		bus.WriteId(os, self.frameID)
	}
}

func (self *Config) InstanceData(os *bus.OutStream) {
	self.serialize(os, configDirtyAll)
}

func (self *Config) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *Config) Unpack(is *bus.InStream) error {
	dirty, err := is.ReadUint64()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	if dirty&configDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	if dirty&configDirtyFrame != 0 {
		if self.frameNumber, err = is.ReadUint32(); err != nil {
			return err
		}
		if self.frameID, err = bus.ReadId(is); err != nil {
			return err
		}
	}
	return nil
}
