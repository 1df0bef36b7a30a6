package server

import (
	"sync"

	"github.com/framewire/framewire/bus"
	"github.com/framewire/framewire/vec"
)

type ViewType uint32

const (
	ViewTypeNone = ViewType(iota)
	ViewTypeWall
	ViewTypeProjection
)

const (
	viewDirtyWall       = uint64(1 << 0)
	viewDirtyProjection = uint64(1 << 1)
	viewDirtyEyeBase    = uint64(1 << 2)
	viewDirtyName       = uint64(1 << 3)

	viewDirtyAll = viewDirtyWall | viewDirtyProjection |
		viewDirtyEyeBase | viewDirtyName
)

// View describes one projection surface. The frustum is a tagged union
// of wall and projection; deltas serialize the type tag, then only the
// fields whose dirty bit is set, in fixed order.
type View struct {
	core bus.ObjectCore

	mutex      sync.Mutex
	current    ViewType
	wall       Wall
	projection Projection
	eyeBase    float32
	name       string
	observer   *Observer
}

func NewView() *View {
	return &View{}
}

func (self *View) Core() *bus.ObjectCore {
	return &self.core
}

func (self *View) CurrentType() ViewType {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.current
}

func (self *View) Wall() Wall {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.wall
}

func (self *View) SetWall(wall Wall) {
	self.mutex.Lock()
	self.wall = wall
	self.current = ViewTypeWall
	self.mutex.Unlock()
	self.core.SetDirty(viewDirtyWall)
}

func (self *View) Projection() Projection {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.projection
}

func (self *View) SetProjection(projection Projection) {
	self.mutex.Lock()
	self.projection = projection
	self.current = ViewTypeProjection
	self.mutex.Unlock()
	self.core.SetDirty(viewDirtyProjection)
}

func (self *View) EyeBase() float32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.eyeBase
}

func (self *View) SetEyeBase(eyeBase float32) {
	self.mutex.Lock()
	self.eyeBase = eyeBase
	self.mutex.Unlock()
	self.core.SetDirty(viewDirtyEyeBase)
}

func (self *View) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *View) SetName(name string) {
	self.mutex.Lock()
	self.name = name
	self.mutex.Unlock()
	self.core.SetDirty(viewDirtyName)
}

func (self *View) Observer() *Observer {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.observer
}

func (self *View) SetObserver(observer *Observer) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.observer = observer
}

// FrustumData resolves the current surface, invalid for type none.
func (self *View) FrustumData() FrustumData {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	switch self.current {
	case ViewTypeWall:
		return self.wall.FrustumData()
	case ViewTypeProjection:
		return self.projection.FrustumData()
	default:
		return FrustumData{}
	}
}

func writeVector3(os *bus.OutStream, v vec.Vector3) {
	os.WriteFloat32(v.X)
	os.WriteFloat32(v.Y)
	os.WriteFloat32(v.Z)
}

func readVector3(is *bus.InStream) (vec.Vector3, error) {
	var v vec.Vector3
	var err error
	if v.X, err = is.ReadFloat32(); err != nil {
		return v, err
	}
	if v.Y, err = is.ReadFloat32(); err != nil {
		return v, err
	}
	v.Z, err = is.ReadFloat32()
	return v, err
}

func writeWall(os *bus.OutStream, wall Wall) {
	writeVector3(os, wall.BottomLeft)
	writeVector3(os, wall.BottomRight)
	writeVector3(os, wall.TopLeft)
}

func readWall(is *bus.InStream) (Wall, error) {
	var wall Wall
	var err error
	if wall.BottomLeft, err = readVector3(is); err != nil {
		return wall, err
	}
	if wall.BottomRight, err = readVector3(is); err != nil {
		return wall, err
	}
	wall.TopLeft, err = readVector3(is)
	return wall, err
}

func writeProjection(os *bus.OutStream, projection Projection) {
	writeVector3(os, projection.Origin)
	os.WriteFloat32(projection.Distance)
	os.WriteFloat32(projection.FOV[0])
	os.WriteFloat32(projection.FOV[1])
	os.WriteFloat32(projection.HPR[0])
	os.WriteFloat32(projection.HPR[1])
	os.WriteFloat32(projection.HPR[2])
}

func readProjection(is *bus.InStream) (Projection, error) {
	var projection Projection
	var err error
	if projection.Origin, err = readVector3(is); err != nil {
		return projection, err
	}
	if projection.Distance, err = is.ReadFloat32(); err != nil {
		return projection, err
	}
	for i := 0; i < 2; i += 1 {
		if projection.FOV[i], err = is.ReadFloat32(); err != nil {
			return projection, err
		}
	}
	for i := 0; i < 3; i += 1 {
		if projection.HPR[i], err = is.ReadFloat32(); err != nil {
			return projection, err
		}
	}
	return projection, nil
}

func (self *View) serialize(os *bus.OutStream, dirty uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	os.WriteUint32(uint32(self.current))
	if self.current == ViewTypeNone {
		return
	}

	os.WriteUint32(uint32(dirty))
	if dirty&viewDirtyWall != 0 {
		writeWall(os, self.wall)
	}
	if dirty&viewDirtyProjection != 0 {
		writeProjection(os, self.projection)
	}
	if dirty&viewDirtyEyeBase != 0 {
		os.WriteFloat32(self.eyeBase)
	}
	if dirty&viewDirtyName != 0 {
		os.WriteString(self.name)
	}
}

func (self *View) InstanceData(os *bus.OutStream) {
	self.serialize(os, viewDirtyAll)
}

func (self *View) Pack(os *bus.OutStream) bool {
	dirty := self.core.DirtyMask()
	if dirty == 0 {
		return false
	}
	self.serialize(os, dirty)
	self.core.ClearDirty()
	return true
}

func (self *View) Unpack(is *bus.InStream) error {
	current, err := is.ReadUint32()
	if err != nil {
		return err
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.current = ViewType(current)
	if self.current == ViewTypeNone {
		return nil
	}

	dirty32, err := is.ReadUint32()
	if err != nil {
		return err
	}
	dirty := uint64(dirty32)
	if dirty&viewDirtyWall != 0 {
		if self.wall, err = readWall(is); err != nil {
			return err
		}
	}
	if dirty&viewDirtyProjection != 0 {
		if self.projection, err = readProjection(is); err != nil {
			return err
		}
	}
	if dirty&viewDirtyEyeBase != 0 {
		if self.eyeBase, err = is.ReadFloat32(); err != nil {
			return err
		}
	}
	if dirty&viewDirtyName != 0 {
		if self.name, err = is.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

// Observer carries head tracking state: per-eye world positions and the
// inverse head matrix, updated by the tracking input outside the frame
// loop.
type Observer struct {
	mutex             sync.Mutex
	eyeBase           float32
	eyePositions      [NumEyes]vec.Vector3
	inverseHeadMatrix vec.Matrix4
	hasEyePositions   bool
}

func NewObserver() *Observer {
	return &Observer{
		inverseHeadMatrix: vec.Identity4(),
	}
}

func (self *Observer) EyeBase() float32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.eyeBase
}

func (self *Observer) SetEyeBase(eyeBase float32) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.eyeBase = eyeBase
}

// HasEyePositions reports whether tracked per-eye positions are active.
func (self *Observer) HasEyePositions() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.hasEyePositions
}

func (self *Observer) EyePosition(eye Eye) vec.Vector3 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.eyePositions[eye.Index()]
}

func (self *Observer) SetEyePosition(eye Eye, position vec.Vector3) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.eyePositions[eye.Index()] = position
	self.hasEyePositions = true
}

func (self *Observer) InverseHeadMatrix() vec.Matrix4 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.inverseHeadMatrix
}

// SetHeadMatrix stores the inverse of the tracked head transform.
// Singular inputs keep the previous value.
func (self *Observer) SetHeadMatrix(head vec.Matrix4) {
	inverse, ok := head.Inverse()
	if !ok {
		return
	}
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.inverseHeadMatrix = inverse
}
