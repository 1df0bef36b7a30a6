package server

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/framewire/framewire/bus"
)

func packetTypes(packets []*TaskPacket) []PacketType {
	types := []PacketType{}
	for _, packet := range packets {
		types = append(types, packet.Type)
	}
	return types
}

func markLastDrawers(channel *Channel) {
	window := channel.Window()
	window.SetLastDrawChannel(channel)
	pipe := window.Pipe()
	pipe.SetLastDrawWindow(window)
	pipe.Node().SetLastDrawPipe(pipe)
}

func TestVisitorMonoClearDraw(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 800, H: 600})
	markLastDrawers(channel)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	compound.Tasks = TaskClear | TaskDraw
	compound.Eyes = EyeCyclop
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	visitor := NewChannelUpdateVisitor(channel, bus.NewId(), 1, EyeCyclop)
	tree.AcceptAll(visitor)

	assert.Equal(t, visitor.Updated(), true)
	assert.Equal(t, packetTypes(visitor.Packets()), []PacketType{
		PacketChannelFrameClear,
		PacketChannelFrameDraw,
		PacketChannelFrameDrawFinish,
		PacketWindowFrameDrawFinish,
		PacketPipeFrameDrawFinish,
		PacketNodeFrameDrawFinish,
	})
}

func TestVisitorQuadStereo(t *testing.T) {
	_, _, window, channel := testHierarchy(PixelViewport{W: 800, H: 600})
	window.SetDrawableConfig(DrawableConfig{Stereo: true, Doublebuffered: true})
	markLastDrawers(channel)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	compound.Tasks = TaskDraw
	compound.Eyes = EyesStereo
	compound.Stereo = StereoModeQuad
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	frameID := bus.NewId()

	leftVisitor := NewChannelUpdateVisitor(channel, frameID, 1, EyeLeft)
	tree.AcceptAll(leftVisitor)
	leftPackets := leftVisitor.Packets()
	assert.Equal(t, packetTypes(leftPackets), []PacketType{
		PacketChannelFrameDraw,
	})
	assert.Equal(t, leftPackets[0].Context.Buffer, DrawBufferBackLeft)

	rightVisitor := NewChannelUpdateVisitor(channel, frameID, 1, EyeRight)
	tree.AcceptAll(rightVisitor)
	rightPackets := rightVisitor.Packets()
	assert.Equal(t, packetTypes(rightPackets), []PacketType{
		PacketChannelFrameDraw,
		PacketChannelFrameDrawFinish,
		PacketWindowFrameDrawFinish,
		PacketPipeFrameDrawFinish,
		PacketNodeFrameDrawFinish,
	})
	assert.Equal(t, rightPackets[0].Context.Buffer, DrawBufferBackRight)
}

func TestVisitorAnaglyphMasks(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 800, H: 600})
	markLastDrawers(channel)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	compound.Tasks = TaskDraw
	compound.Eyes = EyesStereo
	compound.Stereo = StereoModeAnaglyph
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	visitor := NewChannelUpdateVisitor(channel, bus.NewId(), 1, EyeLeft)
	tree.AcceptAll(visitor)

	draw := visitor.Packets()[0]
	assert.Equal(t, draw.Context.BufferMask, ColorMask{Red: true})
}

func TestVisitorTileDecomposition(t *testing.T) {
	_, _, _, channelA := testHierarchy(PixelViewport{W: 800, H: 600})
	_, _, _, channelB := testHierarchy(PixelViewport{W: 800, H: 600})
	markLastDrawers(channelA)
	markLastDrawers(channelB)

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channelA
	root.Tasks = TaskClear
	rootIndex := tree.AddRoot(root)

	left := NewCompound()
	left.Viewport = Viewport{X: 0, Y: 0, W: 0.5, H: 1}
	left.Tasks = TaskDraw
	tree.AddChild(rootIndex, left)

	right := NewCompound()
	right.Channel = channelB
	right.Viewport = Viewport{X: 0.5, Y: 0, W: 0.5, H: 1}
	right.Tasks = TaskDraw
	tree.AddChild(rootIndex, right)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	frameID := bus.NewId()

	visitorA := NewChannelUpdateVisitor(channelA, frameID, 1, EyeCyclop)
	tree.AcceptAll(visitorA)
	var drawA *TaskPacket
	for _, packet := range visitorA.Packets() {
		if packet.Type == PacketChannelFrameDraw {
			drawA = packet
		}
	}
	assert.Equal(t, drawA.Context.PVP, PixelViewport{X: 0, Y: 0, W: 400, H: 600})
	assert.Equal(t, drawA.Context.OffsetX, int32(0))

	visitorB := NewChannelUpdateVisitor(channelB, frameID, 1, EyeCyclop)
	tree.AcceptAll(visitorB)
	var drawB *TaskPacket
	for _, packet := range visitorB.Packets() {
		if packet.Type == PacketChannelFrameDraw {
			drawB = packet
		}
	}
	assert.Equal(t, drawB.Context.PVP, PixelViewport{X: 400, Y: 0, W: 400, H: 600})
	assert.Equal(t, drawB.Context.OffsetX, int32(400))
}

func TestVisitorReadbackTransmitDedup(t *testing.T) {
	nodeA, _, _, channelA := testHierarchy(PixelViewport{W: 800, H: 600})
	nodeB, _, _, _ := testHierarchy(PixelViewport{W: 800, H: 600})
	nodeA.SetNetNodeID(bus.NewId())
	nodeB.SetNetNodeID(bus.NewId())
	markLastDrawers(channelA)

	outputFrame := NewFrame("frame.composite")
	outputFrame.SetNode(nodeA)
	outputFrame.SetDataVersion(EyeCyclop, bus.ObjectVersion{
		ID:      bus.NewId(),
		Version: bus.Version{Lo: 1},
	})

	// two consumers on node B, one local consumer on node A
	inputB1 := NewFrame("frame.composite.in1")
	inputB1.SetNode(nodeB)
	inputB2 := NewFrame("frame.composite.in2")
	inputB2.SetNode(nodeB)
	inputA := NewFrame("frame.composite.local")
	inputA.SetNode(nodeA)
	outputFrame.AddInputFrame(EyeCyclop, inputB1)
	outputFrame.AddInputFrame(EyeCyclop, inputB2)
	outputFrame.AddInputFrame(EyeCyclop, inputA)

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channelA
	compound.Tasks = TaskDraw | TaskReadback
	compound.OutputFrames = []*Frame{outputFrame}
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	visitor := NewChannelUpdateVisitor(channelA, bus.NewId(), 1, EyeCyclop)
	tree.AcceptAll(visitor)

	readbacks := []*TaskPacket{}
	transmits := []*TaskPacket{}
	for _, packet := range visitor.Packets() {
		switch packet.Type {
		case PacketChannelFrameReadback:
			readbacks = append(readbacks, packet)
		case PacketChannelFrameTransmit:
			transmits = append(transmits, packet)
		}
	}

	assert.Equal(t, len(readbacks), 1)
	assert.Equal(t, readbacks[0].Frames, []bus.ObjectVersion{
		outputFrame.Core().ObjectVersion(),
	})

	assert.Equal(t, len(transmits), 1)
	assert.Equal(t, transmits[0].NetNodeID, nodeB.NetNodeID())
	assert.Equal(t, transmits[0].FrameData, outputFrame.DataVersion(EyeCyclop))
}

func TestVisitorAssemble(t *testing.T) {
	nodeB, _, _, channelB := testHierarchy(PixelViewport{W: 800, H: 600})
	nodeB.SetNetNodeID(bus.NewId())
	markLastDrawers(channelB)

	ready := NewFrame("frame.ready")
	ready.SetDataVersion(EyeCyclop, bus.ObjectVersion{
		ID:      bus.NewId(),
		Version: bus.Version{Lo: 1},
	})
	empty := NewFrame("frame.empty")

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channelB
	compound.Tasks = TaskAssemble
	compound.InputFrames = []*Frame{ready, empty}
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	visitor := NewChannelUpdateVisitor(channelB, bus.NewId(), 1, EyeCyclop)
	tree.AcceptAll(visitor)

	assembles := []*TaskPacket{}
	for _, packet := range visitor.Packets() {
		if packet.Type == PacketChannelFrameAssemble {
			assembles = append(assembles, packet)
		}
	}
	assert.Equal(t, len(assembles), 1)
	assert.Equal(t, assembles[0].Frames, []bus.ObjectVersion{
		ready.Core().ObjectVersion(),
	})
}

func TestVisitorSkipsOtherChannel(t *testing.T) {
	_, _, _, channelA := testHierarchy(PixelViewport{W: 800, H: 600})
	_, _, _, channelB := testHierarchy(PixelViewport{W: 800, H: 600})

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channelA
	compound.Tasks = TaskDraw
	tree.AddRoot(compound)
	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	visitor := NewChannelUpdateVisitor(channelB, bus.NewId(), 1, EyeCyclop)
	tree.AcceptAll(visitor)

	assert.Equal(t, visitor.Updated(), false)
	assert.Equal(t, len(visitor.Packets()), 0)
}
