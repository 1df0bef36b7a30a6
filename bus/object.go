package bus

import (
	"sync"
)

type Role int

const (
	RoleUnattached Role = iota
	RoleMaster
	RoleSlave
)

func (self Role) String() string {
	switch self {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	default:
		return "unattached"
	}
}

// Object is the replication contract of a distributed object. The object
// serializes its full state for newly mapped peers, packs only the dirty
// subset on commit, and applies one delta at a time on sync.
type Object interface {
	Core() *ObjectCore

	// InstanceData writes the full object state.
	InstanceData(os *OutStream)

	// Pack writes the delta for the current dirty state and clears it.
	// Returns false without writing when the object is clean.
	Pack(os *OutStream) bool

	// Unpack applies one delta or instance data stream.
	Unpack(is *InStream) error
}

// ObjectCore carries the replication state every distributed object embeds.
// The zero value is unattached.
type ObjectCore struct {
	mutex sync.Mutex

	id      Id
	role    Role
	node    *LocalNode
	version Version
	dirty   uint64

	// slave side: deltas buffered in arrival order until sync
	pending [][]byte
	monitor *Monitor
}

func (self *ObjectCore) attach(node *LocalNode, id Id, role Role, version Version) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.node = node
	self.id = id
	self.role = role
	self.version = version
	if self.monitor == nil {
		self.monitor = NewMonitor()
	}
}

func (self *ObjectCore) detach() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.node = nil
	self.role = RoleUnattached
	self.pending = nil
}

func (self *ObjectCore) ID() Id {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.id
}

func (self *ObjectCore) Role() Role {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.role
}

func (self *ObjectCore) IsAttached() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.node != nil
}

func (self *ObjectCore) IsMaster() bool {
	return self.Role() == RoleMaster
}

func (self *ObjectCore) Version() Version {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.version
}

// ObjectVersion returns the reference to this object at its current version.
func (self *ObjectCore) ObjectVersion() ObjectVersion {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return ObjectVersion{ID: self.id, Version: self.version}
}

func (self *ObjectCore) SetDirty(bits uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.dirty |= bits
}

func (self *ObjectCore) TestDirty(bits uint64) bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.dirty&bits != 0
}

func (self *ObjectCore) DirtyMask() uint64 {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.dirty
}

func (self *ObjectCore) ClearDirty() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.dirty = 0
}

func (self *ObjectCore) IsDirty() bool {
	return self.DirtyMask() != 0
}

func (self *ObjectCore) enqueueDelta(delta []byte) {
	self.mutex.Lock()
	self.pending = append(self.pending, delta)
	monitor := self.monitor
	self.mutex.Unlock()

	if monitor != nil {
		monitor.NotifyAll()
	}
}

func (self *ObjectCore) takePending() [][]byte {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	pending := self.pending
	self.pending = nil
	return pending
}

func (self *ObjectCore) setVersion(version Version) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.version = version
}

func (self *ObjectCore) nextVersion() Version {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.version = self.version.Next()
	return self.version
}
