package server

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/golang/glog"
)

// StatisticType tags one timing sample reported by a render client.
type StatisticType uint32

const (
	StatChannelClear = StatisticType(iota)
	StatChannelDraw
	StatChannelAssemble
	StatChannelReadback
	StatChannelTransmit
)

type Statistic struct {
	Type      StatisticType
	StartTime float32
	EndTime   float32
}

type DFRBalancerSettings struct {
	// frames per second the balanced compound should sustain
	TargetFPS float32
	// reaction damping in [0, 1]: 1 applies the full correction at once,
	// 0 leaves the zoom unchanged
	Damping float32
	// frames per averaging window, 0 adapts on every sample
	AverageFrames int
}

func DefaultDFRBalancerSettings() *DFRBalancerSettings {
	return &DFRBalancerSettings{
		TargetFPS: 10,
		Damping:   0.5,
	}
}

// DFRBalancer drives dynamic frame resolution: it scales the zoom of
// one compound so the producing channel renders fewer pixels when it
// falls below the target frame rate, and recovers resolution when there
// is headroom. Subscribes to the compound channel's load statistics.
type DFRBalancer struct {
	settings *DFRBalancerSettings
	config   *Config
	tree     *CompoundTree
	index    int

	mutex    sync.Mutex
	fpsLast  float32
	accum    float32
	count    int
	newValue bool
	frozen   bool
}

// NewDFRBalancer balances the compound at index, which must have a
// parent supplying the reference pixel viewport.
func NewDFRBalancer(
	config *Config,
	index int,
	settings *DFRBalancerSettings,
) *DFRBalancer {
	balancer := &DFRBalancer{
		settings: settings,
		config:   config,
		tree:     config.Tree(),
		index:    index,
	}
	if channel := balancer.compound().Inherit().Channel; channel != nil {
		channel.AddListener()
	}
	return balancer
}

func (self *DFRBalancer) Close() {
	if channel := self.compound().Inherit().Channel; channel != nil {
		channel.RemoveListener()
	}
}

func (self *DFRBalancer) compound() *Compound {
	return self.tree.Compound(self.index)
}

// SetFrozen pins the zoom to unity until unfrozen.
func (self *DFRBalancer) SetFrozen(frozen bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.frozen = frozen
}

// NotifyLoadData folds one frame's channel timings into the balancer.
// The frame time spans from the clear start to the end of compositing.
func (self *DFRBalancer) NotifyLoadData(
	channel *Channel,
	frameNumber uint32,
	statistics []Statistic,
) {
	startTime := math32.Inf(1)
	endTime := float32(0)
	for _, stat := range statistics {
		switch stat.Type {
		case StatChannelClear:
			startTime = math32.Min(startTime, stat.StartTime)
		case StatChannelAssemble, StatChannelReadback, StatChannelTransmit:
			endTime = math32.Max(endTime, stat.EndTime)
		}
	}
	if math32.IsInf(startTime, 1) {
		return
	}
	time := endTime - startTime
	if time <= 0 {
		return
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.fpsLast = 1000 / time
	self.newValue = true
	self.accum += self.fpsLast
	self.count += 1

	glog.V(2).Infof(
		"[dfr]frame %d channel %s time %fms\n",
		frameNumber, channel.Name(), time,
	)
}

// Update recomputes the compound zoom from the collected samples.
func (self *DFRBalancer) Update(frameNumber uint32) {
	compound := self.compound()

	self.mutex.Lock()
	if self.frozen {
		self.mutex.Unlock()
		compound.Zoom = NoZoom()
		self.config.InvalidateInherit()
		return
	}

	var factor float32
	if self.settings.AverageFrames == 0 {
		if !self.newValue {
			self.mutex.Unlock()
			return
		}
		self.newValue = false
		factor = (math32.Sqrt(self.fpsLast/self.settings.TargetFPS)-1)*
			self.settings.Damping + 1
	} else {
		if self.count < self.settings.AverageFrames {
			self.mutex.Unlock()
			return
		}
		average := self.accum / float32(self.count)
		self.accum = 0
		self.count = 0
		factor = math32.Sqrt(average / self.settings.TargetFPS)
	}
	self.mutex.Unlock()

	zoom := compound.Zoom
	zoom.X *= factor
	zoom.Y *= factor

	parent := compound.Parent
	if parent == NoParent {
		return
	}
	pvp := self.tree.Compound(parent).Inherit().PVP
	channel := compound.Inherit().Channel
	if channel == nil || !pvp.HasArea() {
		return
	}
	channelPVP := channel.PixelViewport()

	minZoom := 128 / math32.Min(float32(pvp.H), float32(pvp.W))
	maxZoom := math32.Min(
		float32(channelPVP.W)/float32(pvp.W),
		float32(channelPVP.H)/float32(pvp.H),
	)

	zoom.X = math32.Max(zoom.X, minZoom)
	zoom.X = math32.Min(zoom.X, maxZoom)
	zoom.Y = zoom.X

	compound.Zoom = zoom
	self.config.InvalidateInherit()

	glog.V(2).Infof(
		"[dfr]frame %d factor %f zoom %f\n",
		frameNumber, factor, zoom.X,
	)
}
