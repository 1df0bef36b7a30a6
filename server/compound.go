package server

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// VisitorResult steers a compound tree traversal.
type VisitorResult int

const (
	VisitContinue = VisitorResult(iota)
	VisitPrune
	VisitTerminate
)

// CompoundVisitor walks the tree in pre/leaf/post order. VisitPre and
// VisitPost run on inner compounds, VisitLeaf on childless ones.
type CompoundVisitor interface {
	VisitPre(compound *Compound) VisitorResult
	VisitLeaf(compound *Compound) VisitorResult
	VisitPost(compound *Compound) VisitorResult
}

// NoParent marks a root compound.
const NoParent = -1

// InheritData is the accumulated rendering state of one compound, valid
// after UpdateInherit and immutable until the next config update.
type InheritData struct {
	Channel  *Channel
	Viewport Viewport
	PVP      PixelViewport
	Range    Range
	Pixel    Pixel
	SubPixel SubPixel
	Zoom     Zoom
	Period   uint32
	Phase    uint32
	Tasks    Task
	Eyes     Eye
	Stereo   StereoMode
	MaxFPS   float32

	AnaglyphLeft  ColorMask
	AnaglyphRight ColorMask

	FrustumType ViewType
	Wall        Wall
	Projection  Projection
}

// Compound is one node of the rendering plan. Tree links are indices
// into the owning CompoundTree arena. Local attributes are written at
// config load or update boundaries only; during a frame the tree is
// read-only, so access is unsynchronized.
type Compound struct {
	Parent   int
	Children []int

	Name    string
	Channel *Channel

	Viewport Viewport
	Pixel    Pixel
	SubPixel SubPixel
	Range    Range
	Zoom     Zoom
	Period   uint32
	Phase    uint32

	Tasks  Task
	Eyes   Eye
	Stereo StereoMode
	MaxFPS float32

	AnaglyphLeft  ColorMask
	AnaglyphRight ColorMask
	HasAnaglyph   bool

	FrustumType ViewType
	Wall        Wall
	Projection  Projection

	InputFrames  []*Frame
	OutputFrames []*Frame
	TaskID       uint32

	inherit InheritData
}

// NewCompound returns a compound with neutral local attributes. Unset
// markers: zero Period means inherit, zero Tasks means default, zero
// Eyes means inherit, zero MaxFPS means inherit.
func NewCompound() *Compound {
	return &Compound{
		Parent:   NoParent,
		Viewport: FullViewport(),
		Pixel:    AllPixels(),
		SubPixel: AllSubPixels(),
		Range:    FullRange(),
		Zoom:     NoZoom(),
	}
}

// Inherit returns the cached inherited state. Read-only during a frame.
func (self *Compound) Inherit() *InheritData {
	return &self.inherit
}

func (self *Compound) IsLeaf() bool {
	return len(self.Children) == 0
}

// InheritActive reports whether this compound contributes to the given
// eye pass.
func (self *Compound) InheritActive(eye Eye) bool {
	return self.inherit.Eyes&eye != 0 &&
		self.inherit.Channel != nil &&
		self.inherit.PVP.HasArea()
}

func (self *Compound) TestInheritTask(task Task) bool {
	return self.inherit.Tasks&task != 0
}

// IsLastInheritEye reports whether no higher eye pass is active on this
// compound, so per-frame completion work runs exactly once.
func (self *Compound) IsLastInheritEye(eye Eye) bool {
	if self.inherit.Eyes&eye == 0 {
		return false
	}
	higher := self.inherit.Eyes &^ (eye | (eye - 1))
	return higher == 0
}

// CompoundTree is the arena of one configuration's compounds. Compounds
// reference each other by index so the whole plan can be rebuilt or
// discarded wholesale at update boundaries.
type CompoundTree struct {
	compounds []*Compound
}

func NewCompoundTree() *CompoundTree {
	return &CompoundTree{}
}

// AddRoot appends a root compound and returns its index.
func (self *CompoundTree) AddRoot(compound *Compound) int {
	compound.Parent = NoParent
	index := len(self.compounds)
	self.compounds = append(self.compounds, compound)
	return index
}

// AddChild appends a compound under parent and returns its index.
func (self *CompoundTree) AddChild(parent int, compound *Compound) int {
	compound.Parent = parent
	index := len(self.compounds)
	self.compounds = append(self.compounds, compound)
	p := self.compounds[parent]
	p.Children = append(p.Children, index)
	return index
}

func (self *CompoundTree) Compound(index int) *Compound {
	return self.compounds[index]
}

func (self *CompoundTree) Len() int {
	return len(self.compounds)
}

// Roots lists the indices of all root compounds.
func (self *CompoundTree) Roots() []int {
	roots := []int{}
	for i, compound := range self.compounds {
		if compound.Parent == NoParent {
			roots = append(roots, i)
		}
	}
	return roots
}

func (self *CompoundTree) compoundLabel(index int) string {
	compound := self.compounds[index]
	if compound.Name != "" {
		return compound.Name
	}
	return fmt.Sprintf("compound[%d]", index)
}

// Validate checks the parent links for cycles and out-of-range indices.
func (self *CompoundTree) Validate() error {
	for i := range self.compounds {
		visited := map[int]bool{}
		path := []string{}
		for j := i; j != NoParent; j = self.compounds[j].Parent {
			if j < 0 || j >= len(self.compounds) {
				return NewConfigError(
					self.compoundLabel(i),
					"parent index %d out of range", j,
				)
			}
			if visited[j] {
				path = append(path, self.compoundLabel(j))
				return NewConfigError(
					self.compoundLabel(i),
					"cycle in compound parents: %s",
					strings.Join(path, " -> "),
				)
			}
			visited[j] = true
			path = append(path, self.compoundLabel(j))
		}
	}
	return nil
}

// UpdateInherit recomputes the cached inherited state of every compound
// in a single top-down pass. The activeEyes mask restricts the whole
// plan, usually the config's stereo setting.
func (self *CompoundTree) UpdateInherit(activeEyes Eye) error {
	if err := self.Validate(); err != nil {
		return err
	}
	root := InheritData{
		Viewport: FullViewport(),
		Range:    FullRange(),
		Pixel:    AllPixels(),
		SubPixel: AllSubPixels(),
		Zoom:     NoZoom(),
		Period:   1,
		Phase:    0,
		Eyes:     activeEyes,
		MaxFPS:   math32.Inf(1),

		AnaglyphLeft:  ColorMask{Red: true},
		AnaglyphRight: ColorMask{Green: true, Blue: true},
	}
	for _, index := range self.Roots() {
		self.updateInherit(index, &root, true)
	}
	return nil
}

func (self *CompoundTree) updateInherit(index int, parent *InheritData, isRoot bool) {
	compound := self.compounds[index]
	inherit := &compound.inherit
	*inherit = *parent

	if compound.Channel != nil {
		inherit.Channel = compound.Channel
	}

	inherit.Viewport = compound.Viewport.Apply(parent.Viewport)
	inherit.Range = compound.Range.Apply(parent.Range)
	inherit.Pixel = compound.Pixel.Apply(parent.Pixel)
	inherit.SubPixel = compound.SubPixel.Apply(parent.SubPixel)
	inherit.Zoom = compound.Zoom.Apply(parent.Zoom)

	if compound.Period != 0 {
		inherit.Period = parent.Period * compound.Period
		inherit.Phase = parent.Phase*compound.Period + compound.Phase
	}

	if compound.Eyes != 0 {
		inherit.Eyes = parent.Eyes & compound.Eyes
	}
	if compound.Stereo != StereoModeUnset {
		inherit.Stereo = compound.Stereo
	}
	if compound.HasAnaglyph {
		inherit.AnaglyphLeft = compound.AnaglyphLeft
		inherit.AnaglyphRight = compound.AnaglyphRight
	}
	if compound.MaxFPS != 0 {
		inherit.MaxFPS = compound.MaxFPS
	}
	if compound.FrustumType != ViewTypeNone {
		inherit.FrustumType = compound.FrustumType
		inherit.Wall = compound.Wall
		inherit.Projection = compound.Projection
	}

	if compound.Tasks != TaskNone {
		inherit.Tasks = parent.Tasks | compound.Tasks
	} else if inherit.Tasks == TaskNone {
		if isRoot {
			inherit.Tasks = TaskClear | TaskDraw | TaskReadback | TaskView
		} else if compound.IsLeaf() {
			inherit.Tasks = TaskClear | TaskDraw | TaskReadback
		}
	}

	// Snap the fractional viewport onto the destination channel and
	// recompute it pixel-correct so nested decompositions do not drift.
	if inherit.Channel != nil {
		native := inherit.Channel.PixelViewport()
		inherit.PVP = native.ApplyViewport(inherit.Viewport)
		if inherit.PVP.HasArea() {
			inherit.Viewport = native.ViewportOf(inherit.PVP)
		}
	} else {
		inherit.PVP = PixelViewport{}
	}

	for _, child := range compound.Children {
		self.updateInherit(child, inherit, false)
	}
}

// Accept traverses the subtree at index. VisitPrune from VisitPre skips
// the children, VisitTerminate aborts the whole walk.
func (self *CompoundTree) Accept(index int, visitor CompoundVisitor) VisitorResult {
	compound := self.compounds[index]
	if compound.IsLeaf() {
		return visitor.VisitLeaf(compound)
	}

	switch visitor.VisitPre(compound) {
	case VisitPrune:
		return VisitContinue
	case VisitTerminate:
		return VisitTerminate
	}

	for _, child := range compound.Children {
		if self.Accept(child, visitor) == VisitTerminate {
			return VisitTerminate
		}
	}

	return visitor.VisitPost(compound)
}

// AcceptAll traverses every root in order.
func (self *CompoundTree) AcceptAll(visitor CompoundVisitor) VisitorResult {
	for _, root := range self.Roots() {
		if self.Accept(root, visitor) == VisitTerminate {
			return VisitTerminate
		}
	}
	return VisitContinue
}

// FrustumData resolves the inherited frustum surface, falling back to
// the destination channel's view when the plan sets none.
func (self *Compound) FrustumData() FrustumData {
	switch self.inherit.FrustumType {
	case ViewTypeWall:
		return self.inherit.Wall.FrustumData()
	case ViewTypeProjection:
		return self.inherit.Projection.FrustumData()
	}
	if self.inherit.Channel != nil {
		if view := self.inherit.Channel.View(); view != nil {
			return view.FrustumData()
		}
	}
	return FrustumData{}
}
