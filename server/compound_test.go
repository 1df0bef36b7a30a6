package server

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func testHierarchy(pvp PixelViewport) (*Node, *Pipe, *Window, *Channel) {
	node := NewNode()
	pipe := NewPipe()
	window := NewWindow()
	channel := NewChannel()

	node.AddPipe(pipe)
	pipe.AddWindow(window)
	window.SetPixelViewport(pvp)
	window.AddChannel(channel)
	channel.SetPixelViewport(pvp)

	return node, pipe, window, channel
}

func TestInheritIdempotent(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{X: 0, Y: 0, W: 800, H: 600})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	rootIndex := tree.AddRoot(root)

	left := NewCompound()
	left.Viewport = Viewport{X: 0, Y: 0, W: 0.5, H: 1}
	left.Tasks = TaskDraw
	tree.AddChild(rootIndex, left)

	right := NewCompound()
	right.Viewport = Viewport{X: 0.5, Y: 0, W: 0.5, H: 1}
	right.Range = Range{Start: 0.25, End: 0.75}
	right.Eyes = EyeLeft | EyeCyclop
	tree.AddChild(rootIndex, right)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	first := []InheritData{}
	for i := 0; i < tree.Len(); i += 1 {
		first = append(first, *tree.Compound(i).Inherit())
	}

	err = tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	for i := 0; i < tree.Len(); i += 1 {
		assert.Equal(t, *tree.Compound(i).Inherit(), first[i])
	}
}

func TestInheritViewportPixelCorrect(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{X: 0, Y: 0, W: 800, H: 600})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	rootIndex := tree.AddRoot(root)

	child := NewCompound()
	child.Viewport = Viewport{X: 0, Y: 0, W: 0.5, H: 1}
	tree.AddChild(rootIndex, child)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	inherit := child.Inherit()
	assert.Equal(t, inherit.PVP, PixelViewport{X: 0, Y: 0, W: 400, H: 600})
	assert.Equal(t, inherit.Viewport, Viewport{X: 0, Y: 0, W: 0.5, H: 1})

	// applying the pixel-correct viewport back reproduces the pvp
	assert.Equal(
		t,
		channel.PixelViewport().ApplyViewport(inherit.Viewport),
		inherit.PVP,
	)
}

func TestInheritEyesIntersect(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 100, H: 100})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	root.Eyes = EyesStereo
	rootIndex := tree.AddRoot(root)

	child := NewCompound()
	child.Eyes = EyeLeft | EyeCyclop
	tree.AddChild(rootIndex, child)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	assert.Equal(t, root.Inherit().Eyes, EyesStereo)
	assert.Equal(t, child.Inherit().Eyes, EyeLeft)
	assert.Equal(t, child.InheritActive(EyeLeft), true)
	assert.Equal(t, child.InheritActive(EyeRight), false)
}

func TestInheritTaskDefaults(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 100, H: 100})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	root.Tasks = TaskClear
	rootIndex := tree.AddRoot(root)

	leaf := NewCompound()
	leaf.Tasks = TaskDraw
	tree.AddChild(rootIndex, leaf)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	assert.Equal(t, root.Inherit().Tasks, TaskClear)
	assert.Equal(t, leaf.Inherit().Tasks, TaskClear|TaskDraw)

	// unset tasks everywhere fall back to the defaults
	bare := NewCompound()
	bare.Channel = channel
	bareTree := NewCompoundTree()
	bareTree.AddRoot(bare)
	err = bareTree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)
	assert.Equal(
		t,
		bare.Inherit().Tasks,
		TaskClear|TaskDraw|TaskReadback|TaskView,
	)
}

func TestInheritRangeAndDecomposition(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 100, H: 100})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	root.Range = Range{Start: 0, End: 0.5}
	root.Pixel = Pixel{X: 0, Y: 0, W: 2, H: 1}
	rootIndex := tree.AddRoot(root)

	child := NewCompound()
	child.Range = Range{Start: 0.5, End: 1}
	child.Pixel = Pixel{X: 1, Y: 0, W: 2, H: 1}
	child.SubPixel = SubPixel{Index: 1, Size: 2}
	child.Zoom = Zoom{X: 2, Y: 2}
	tree.AddChild(rootIndex, child)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	inherit := child.Inherit()
	assert.Equal(t, inherit.Range, Range{Start: 0.25, End: 0.5})
	assert.Equal(t, inherit.Pixel, Pixel{X: 2, Y: 0, W: 4, H: 1})
	assert.Equal(t, inherit.SubPixel, SubPixel{Index: 1, Size: 2})
	assert.Equal(t, inherit.Zoom, Zoom{X: 2, Y: 2})
}

func TestInheritPeriodPhase(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 100, H: 100})

	tree := NewCompoundTree()
	root := NewCompound()
	root.Channel = channel
	root.Period = 2
	root.Phase = 1
	rootIndex := tree.AddRoot(root)

	child := NewCompound()
	child.Period = 2
	child.Phase = 1
	tree.AddChild(rootIndex, child)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	assert.Equal(t, root.Inherit().Period, uint32(2))
	assert.Equal(t, root.Inherit().Phase, uint32(1))
	assert.Equal(t, child.Inherit().Period, uint32(4))
	assert.Equal(t, child.Inherit().Phase, uint32(3))
}

func TestCycleDetection(t *testing.T) {
	tree := NewCompoundTree()
	a := NewCompound()
	a.Name = "a"
	aIndex := tree.AddRoot(a)
	b := NewCompound()
	b.Name = "b"
	bIndex := tree.AddChild(aIndex, b)
	a.Parent = bIndex

	err := tree.UpdateInherit(EyesAll)
	configErr, ok := err.(*ConfigError)
	assert.Equal(t, ok, true)
	assert.NotEqual(t, configErr.Msg, "")
}

func TestIsLastInheritEye(t *testing.T) {
	_, _, _, channel := testHierarchy(PixelViewport{W: 100, H: 100})

	tree := NewCompoundTree()
	compound := NewCompound()
	compound.Channel = channel
	compound.Eyes = EyesStereo
	tree.AddRoot(compound)

	err := tree.UpdateInherit(EyesAll)
	assert.Equal(t, err, nil)

	assert.Equal(t, compound.IsLastInheritEye(EyeLeft), false)
	assert.Equal(t, compound.IsLastInheritEye(EyeRight), true)
	assert.Equal(t, compound.IsLastInheritEye(EyeCyclop), false)
}
