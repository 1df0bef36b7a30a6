package server

import (
	"github.com/golang/glog"

	"github.com/framewire/framewire/bus"
)

// ChannelUpdateVisitor walks the compound tree once per (channel, eye)
// and emits the ordered task packet sequence for one frame. Packets are
// collected on the visitor and drained by the config frame loop.
type ChannelUpdateVisitor struct {
	channel     *Channel
	frameID     bus.Id
	frameNumber uint32
	eye         Eye

	updated bool
	packets []*TaskPacket
}

func NewChannelUpdateVisitor(
	channel *Channel,
	frameID bus.Id,
	frameNumber uint32,
	eye Eye,
) *ChannelUpdateVisitor {
	return &ChannelUpdateVisitor{
		channel:     channel,
		frameID:     frameID,
		frameNumber: frameNumber,
		eye:         eye,
	}
}

// Updated reports whether the walk emitted a draw for the channel.
func (self *ChannelUpdateVisitor) Updated() bool {
	return self.updated
}

// Packets returns the emitted packets in emission order.
func (self *ChannelUpdateVisitor) Packets() []*TaskPacket {
	return self.packets
}

func (self *ChannelUpdateVisitor) skip(compound *Compound) bool {
	return compound.Inherit().Channel != self.channel ||
		!compound.InheritActive(self.eye) ||
		compound.Inherit().Tasks == TaskNone
}

func (self *ChannelUpdateVisitor) VisitPre(compound *Compound) VisitorResult {
	if !compound.InheritActive(self.eye) {
		return VisitPrune
	}

	self.updateDrawFinish(compound)
	if self.skip(compound) {
		return VisitContinue
	}

	context := self.makeContext(compound)
	self.updateFrameRate(compound)
	if compound.TestInheritTask(TaskView) {
		self.emitContext(PacketChannelFrameViewStart, context)
	}
	if compound.TestInheritTask(TaskClear) {
		self.emitContext(PacketChannelFrameClear, context)
	}
	return VisitContinue
}

func (self *ChannelUpdateVisitor) VisitLeaf(compound *Compound) VisitorResult {
	if !compound.InheritActive(self.eye) {
		return VisitContinue
	}
	if self.skip(compound) {
		self.updateDrawFinish(compound)
		return VisitContinue
	}

	context := self.makeContext(compound)
	self.updateFrameRate(compound)
	if compound.TestInheritTask(TaskView) {
		self.emitContext(PacketChannelFrameViewStart, context)
	}
	if compound.TestInheritTask(TaskClear) {
		self.emitContext(PacketChannelFrameClear, context)
	}
	if compound.TestInheritTask(TaskDraw) {
		self.emit(&TaskPacket{
			Type:     PacketChannelFrameDraw,
			ObjectID: self.channel.Core().ID().Routing(),
			Context:  context,
			Finish:   self.channel.HasListeners(),
		})
		self.updated = true
	}

	self.updateDrawFinish(compound)
	self.updatePostDraw(compound, context)
	return VisitContinue
}

func (self *ChannelUpdateVisitor) VisitPost(compound *Compound) VisitorResult {
	if self.skip(compound) {
		return VisitContinue
	}

	context := self.makeContext(compound)
	self.updatePostDraw(compound, context)
	return VisitContinue
}

// updateDrawFinish emits the cascading draw completion packets once the
// last eye pass of the channel's last drawing compound went out. Each
// hierarchy level cascades only while it is its parent's last drawer.
func (self *ChannelUpdateVisitor) updateDrawFinish(compound *Compound) {
	lastDrawCompound := self.channel.LastDrawCompound()
	if lastDrawCompound != nil && lastDrawCompound != compound {
		return
	}
	if !compound.IsLastInheritEye(self.eye) {
		return
	}
	if lastDrawCompound == nil {
		self.channel.SetLastDrawCompound(compound)
	}

	self.emit(&TaskPacket{
		Type:     PacketChannelFrameDrawFinish,
		ObjectID: self.channel.Core().ID().Routing(),
	})

	window := self.channel.Window()
	if window == nil || window.LastDrawChannel() != self.channel {
		return
	}
	self.emit(&TaskPacket{
		Type:     PacketWindowFrameDrawFinish,
		ObjectID: window.Core().ID().Routing(),
	})

	pipe := window.Pipe()
	if pipe == nil || pipe.LastDrawWindow() != window {
		return
	}
	self.emit(&TaskPacket{
		Type:     PacketPipeFrameDrawFinish,
		ObjectID: pipe.Core().ID().Routing(),
	})

	node := pipe.Node()
	if node == nil || node.LastDrawPipe() != pipe {
		return
	}
	self.emit(&TaskPacket{
		Type:     PacketNodeFrameDrawFinish,
		ObjectID: node.Core().ID().Routing(),
	})
}

func (self *ChannelUpdateVisitor) updatePostDraw(compound *Compound, context RenderContext) {
	self.updateAssemble(compound, context)
	self.updateReadback(compound, context)
	if compound.TestInheritTask(TaskView) {
		self.emitContext(PacketChannelFrameViewFinish, context)
	}
}

func (self *ChannelUpdateVisitor) updateAssemble(compound *Compound, context RenderContext) {
	if !compound.TestInheritTask(TaskAssemble) {
		return
	}

	frames := []bus.ObjectVersion{}
	for _, frame := range compound.InputFrames {
		if frame.HasData(self.eye) {
			frames = append(frames, frame.Core().ObjectVersion())
		}
	}
	if len(frames) == 0 {
		return
	}

	self.emit(&TaskPacket{
		Type:     PacketChannelFrameAssemble,
		ObjectID: self.channel.Core().ID().Routing(),
		Context:  context,
		Frames:   frames,
	})
}

func (self *ChannelUpdateVisitor) updateReadback(compound *Compound, context RenderContext) {
	if !compound.TestInheritTask(TaskReadback) {
		return
	}

	outputFrames := []*Frame{}
	frames := []bus.ObjectVersion{}
	for _, frame := range compound.OutputFrames {
		if frame.HasData(self.eye) {
			outputFrames = append(outputFrames, frame)
			frames = append(frames, frame.Core().ObjectVersion())
		}
	}
	if len(outputFrames) == 0 {
		return
	}

	self.emit(&TaskPacket{
		Type:     PacketChannelFrameReadback,
		ObjectID: self.channel.Core().ID().Routing(),
		Context:  context,
		Frames:   frames,
	})

	self.updateTransmit(outputFrames, context)
}

// updateTransmit plans one network transmission per distinct consumer
// render client of each output frame. Consumers colocated with the
// producer assemble locally and get no transmit.
func (self *ChannelUpdateVisitor) updateTransmit(outputFrames []*Frame, context RenderContext) {
	for _, outputFrame := range outputFrames {
		outputNode := outputFrame.Node()
		if outputNode == nil {
			continue
		}
		outputNetID := outputNode.NetNodeID()

		sent := map[bus.Id]bool{}
		for _, inputFrame := range outputFrame.InputFrames(self.eye) {
			inputNode := inputFrame.Node()
			if inputNode == nil {
				continue
			}
			netNodeID := inputNode.NetNodeID()
			if netNodeID == outputNetID || sent[netNodeID] {
				continue
			}
			sent[netNodeID] = true

			self.emit(&TaskPacket{
				Type:         PacketChannelFrameTransmit,
				ObjectID:     self.channel.Core().ID().Routing(),
				Context:      context,
				FrameData:    outputFrame.DataVersion(self.eye),
				ClientNodeID: inputNode.Core().ID(),
				NetNodeID:    netNodeID,
			})
		}
	}
}

func (self *ChannelUpdateVisitor) updateFrameRate(compound *Compound) {
	if window := self.channel.Window(); window != nil {
		window.CoalesceMaxFPS(compound.Inherit().MaxFPS)
	}
}

func (self *ChannelUpdateVisitor) makeContext(compound *Compound) RenderContext {
	inherit := compound.Inherit()
	context := RenderContext{
		FrameID:    self.frameID,
		PVP:        inherit.PVP,
		VP:         inherit.Viewport,
		Range:      inherit.Range,
		Pixel:      inherit.Pixel,
		SubPixel:   inherit.SubPixel,
		Zoom:       inherit.Zoom,
		Period:     inherit.Period,
		Phase:      inherit.Phase,
		OffsetX:    inherit.PVP.X,
		OffsetY:    inherit.PVP.Y,
		Eye:        self.eye,
		Buffer:     self.drawBuffer(compound),
		BufferMask: self.drawBufferMask(compound),
		View:       self.channel.ViewVersion(),
		TaskID:     compound.TaskID,
	}
	if err := updateContextFrustum(&context, compound, self.eye); err != nil {
		glog.Errorf("[visit]frustum = %s\n", err)
	}
	return context
}

func (self *ChannelUpdateVisitor) drawableConfig() DrawableConfig {
	if window := self.channel.Window(); window != nil {
		return window.DrawableConfig()
	}
	return DrawableConfig{}
}

func (self *ChannelUpdateVisitor) drawBuffer(compound *Compound) uint32 {
	dc := self.drawableConfig()
	stereoRow := 0
	if compound.Inherit().Stereo == StereoModeQuad {
		stereoRow = boolIndex(dc.Stereo)
	}
	return drawBuffers[stereoRow][boolIndex(dc.Doublebuffered)][self.eye.Index()]
}

func (self *ChannelUpdateVisitor) drawBufferMask(compound *Compound) ColorMask {
	inherit := compound.Inherit()
	if inherit.Stereo != StereoModeAnaglyph {
		return ColorMaskAll()
	}
	switch self.eye {
	case EyeLeft:
		return inherit.AnaglyphLeft
	case EyeRight:
		return inherit.AnaglyphRight
	default:
		return ColorMaskAll()
	}
}

func (self *ChannelUpdateVisitor) emitContext(packetType PacketType, context RenderContext) {
	self.emit(&TaskPacket{
		Type:     packetType,
		ObjectID: self.channel.Core().ID().Routing(),
		Context:  context,
	})
}

func (self *ChannelUpdateVisitor) emit(packet *TaskPacket) {
	packet.FrameNumber = self.frameNumber
	packet.FrameID = self.frameID
	self.packets = append(self.packets, packet)
	glog.V(2).Infof(
		"[visit]emit %s frame %d channel %s eye %s\n",
		packet.Type, self.frameNumber, self.channel.Name(), self.eye,
	)
}
