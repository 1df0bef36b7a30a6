package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
)

/*
LocalNode is one peer's endpoint on the object bus. It owns the registry of
attached distributed objects, the per-peer outbound queues, and the transport
goroutines. Producers enqueue without blocking; the send loop is the only
place that suspends on transport backpressure. Per peer, messages are
delivered in send order. Across peers there is no ordering.
*/

type LocalNodeSettings struct {
	SendTimeout    time.Duration
	ReceiveTimeout time.Duration
}

func DefaultLocalNodeSettings() *LocalNodeSettings {
	return &LocalNodeSettings{
		SendTimeout:    5 * time.Second,
		ReceiveTimeout: 15 * time.Second,
	}
}

type MessageHandler func(message *Message)

type LocalNode struct {
	ctx    context.Context
	cancel context.CancelFunc

	busId    Id
	settings *LocalNodeSettings

	mutex       sync.Mutex
	objects     map[uint64]Object
	localSlaves map[uint64][]Object
	subscribers map[uint64]map[Id]bool
	owners      map[uint64]Id
	peers       map[Id]*peer
	handler     MessageHandler
}

func NewLocalNodeWithDefaults(ctx context.Context) *LocalNode {
	return NewLocalNode(ctx, NewId(), DefaultLocalNodeSettings())
}

func NewLocalNode(ctx context.Context, busId Id, settings *LocalNodeSettings) *LocalNode {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &LocalNode{
		ctx:         cancelCtx,
		cancel:      cancel,
		busId:       busId,
		settings:    settings,
		objects:     map[uint64]Object{},
		localSlaves: map[uint64][]Object{},
		subscribers: map[uint64]map[Id]bool{},
		owners:      map[uint64]Id{},
		peers:       map[Id]*peer{},
	}
}

func (self *LocalNode) BusID() Id {
	return self.busId
}

// SetHandler installs the application packet dispatcher. Messages with
// commands >= CmdApplication addressed to objects on this node are passed to
// the handler on the receive goroutine.
func (self *LocalNode) SetHandler(handler MessageHandler) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.handler = handler
}

func (self *LocalNode) Close() {
	self.cancel()

	self.mutex.Lock()
	peers := maps.Values(self.peers)
	self.peers = map[Id]*peer{}
	self.mutex.Unlock()

	for _, peer := range peers {
		peer.close()
	}
}

// Register attaches a master object and mints its identity.
func (self *LocalNode) Register(object Object) (Id, error) {
	id := NewId()
	if id.Routing() == 0 {
		return Id{}, fmt.Errorf("bus: degenerate routing id")
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	if _, ok := self.objects[id.Routing()]; ok {
		return Id{}, fmt.Errorf("bus: routing id collision for %s", id)
	}
	object.Core().attach(self, id, RoleMaster, Version{})
	self.objects[id.Routing()] = object
	return id, nil
}

// Deregister detaches a master object and drops its subscriptions.
func (self *LocalNode) Deregister(object Object) {
	core := object.Core()
	id := core.ID()

	self.mutex.Lock()
	delete(self.objects, id.Routing())
	delete(self.subscribers, id.Routing())
	self.mutex.Unlock()

	core.detach()
}

// MapObject attaches a slave instance of an object owned by a peer. The
// instance data arrives asynchronously; Sync blocks until the requested
// version is applied.
func (self *LocalNode) MapObject(object Object, ov ObjectVersion, owner Id) error {
	object.Core().attach(self, ov.ID, RoleSlave, Version{})

	self.mutex.Lock()
	self.objects[ov.ID.Routing()] = object
	self.owners[ov.ID.Routing()] = owner
	self.mutex.Unlock()

	os := NewOutStream()
	ov.Write(os)
	self.Send(owner, &Message{
		Command:  CmdObjectMap,
		ObjectID: ov.ID.Routing(),
		Payload:  os.Bytes(),
	})
	return nil
}

// UnmapObject detaches a slave instance and notifies the owner.
func (self *LocalNode) UnmapObject(object Object) {
	core := object.Core()
	id := core.ID()

	self.mutex.Lock()
	owner, hasOwner := self.owners[id.Routing()]
	delete(self.objects, id.Routing())
	delete(self.owners, id.Routing())
	self.mutex.Unlock()

	if hasOwner {
		self.Send(owner, &Message{
			Command:  CmdObjectUnmap,
			ObjectID: id.Routing(),
		})
	}
	core.detach()
}

// AttachLocal registers a slave instance that shares this process with its
// master, with deltas short-circuited on commit. Used by single-process
// configurations and tests.
func (self *LocalNode) AttachLocal(object Object, ov ObjectVersion) {
	object.Core().attach(self, ov.ID, RoleSlave, ov.Version)

	self.mutex.Lock()
	routing := ov.ID.Routing()
	self.localSlaves[routing] = append(self.localSlaves[routing], object)
	self.mutex.Unlock()
}

// DetachLocal removes a local slave instance.
func (self *LocalNode) DetachLocal(object Object) {
	core := object.Core()
	routing := core.ID().Routing()

	self.mutex.Lock()
	slaves := self.localSlaves[routing]
	for i, slave := range slaves {
		if slave == object {
			self.localSlaves[routing] = append(slaves[:i:i], slaves[i+1:]...)
			break
		}
	}
	if len(self.localSlaves[routing]) == 0 {
		delete(self.localSlaves, routing)
	}
	self.mutex.Unlock()

	core.detach()
}

// Commit publishes the dirty state of a master object as the next version.
// Clean objects keep their version.
func (self *LocalNode) Commit(object Object) (Version, error) {
	core := object.Core()
	if !core.IsMaster() {
		return Version{}, fmt.Errorf("bus: commit on %s object %s", core.Role(), core.ID())
	}
	if !core.IsDirty() {
		return core.Version(), nil
	}

	version := core.nextVersion()
	os := NewOutStream()
	WriteVersion(os, version)
	if !object.Pack(os) {
		// dirty flag without packed payload
		core.setVersion(version)
	}

	id := core.ID()
	message := &Message{
		Command:  CmdObjectDelta,
		ObjectID: id.Routing(),
		Payload:  os.Bytes(),
	}

	self.mutex.Lock()
	peerIds := maps.Keys(self.subscribers[id.Routing()])
	slaves := self.localSlaves[id.Routing()]
	self.mutex.Unlock()

	for _, peerId := range peerIds {
		self.Send(peerId, message)
	}
	for _, slave := range slaves {
		slave.Core().enqueueDelta(message.Payload)
	}

	glog.V(2).Infof("[bus]commit %s v%s -> %d peers\n", id, version, len(peerIds))
	return version, nil
}

// Sync blocks until the object has applied at least the requested version.
// On a master, head and older versions return immediately; a version ahead of
// head is a VersionError.
func (self *LocalNode) Sync(ctx context.Context, object Object, version Version) error {
	core := object.Core()
	if core.IsMaster() {
		if version == VersionHead {
			return nil
		}
		if head := core.Version(); head.Less(version) {
			return &VersionError{Requested: version, Head: head}
		}
		return nil
	}

	for {
		for _, delta := range core.takePending() {
			if err := self.applyDelta(object, delta); err != nil {
				return err
			}
		}
		applied := core.Version()
		if version == VersionHead || !applied.Less(version) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-self.ctx.Done():
			return self.ctx.Err()
		case <-core.monitor.NotifyChannel():
		}
	}
}

func (self *LocalNode) applyDelta(object Object, delta []byte) error {
	is := NewInStream(delta)
	version, err := ReadVersion(is)
	if err != nil {
		return err
	}
	if is.HasData() {
		if err := object.Unpack(is); err != nil {
			return err
		}
	}
	object.Core().setVersion(version)
	return nil
}

// Send enqueues one message for a peer. Never blocks; messages for unknown or
// disconnected peers are dropped.
func (self *LocalNode) Send(to Id, message *Message) {
	if to == self.busId {
		self.handleMessage(message)
		return
	}

	self.mutex.Lock()
	peer := self.peers[to]
	self.mutex.Unlock()

	if peer == nil {
		glog.V(2).Infof("[bus]drop ->%s, no peer\n", to)
		return
	}
	peer.enqueue(message.Encode())
}

// AddPeer starts the send and receive loops for a connected peer.
func (self *LocalNode) AddPeer(busId Id, transport Transport) {
	peerCtx, peerCancel := context.WithCancel(self.ctx)
	p := &peer{
		ctx:       peerCtx,
		cancel:    peerCancel,
		busId:     busId,
		transport: transport,
		monitor:   NewMonitor(),
	}

	self.mutex.Lock()
	self.peers[busId] = p
	self.mutex.Unlock()

	go self.sendLoop(p)
	go self.receiveLoop(p)
}

// RemovePeer disconnects a peer and drops its queued messages and
// subscriptions.
func (self *LocalNode) RemovePeer(busId Id) {
	self.mutex.Lock()
	peer := self.peers[busId]
	delete(self.peers, busId)
	for _, peerIds := range self.subscribers {
		delete(peerIds, busId)
	}
	self.mutex.Unlock()

	if peer != nil {
		peer.close()
	}
}

func (self *LocalNode) sendLoop(p *peer) {
	defer p.close()

	for {
		messages := p.take()
		if messages == nil {
			select {
			case <-p.ctx.Done():
				return
			case <-p.monitor.NotifyChannel():
				continue
			}
		}
		for _, message := range messages {
			if err := p.transport.Send(p.ctx, message); err != nil {
				busErr := &BusError{Peer: p.busId, Err: err}
				glog.Infof("[bus]%s\n", busErr)
				self.RemovePeer(p.busId)
				return
			}
		}
	}
}

func (self *LocalNode) receiveLoop(p *peer) {
	for {
		b, err := p.transport.Receive(p.ctx)
		if err != nil {
			select {
			case <-p.ctx.Done():
			default:
				busErr := &BusError{Peer: p.busId, Err: err}
				glog.Infof("[bus]%s\n", busErr)
				self.RemovePeer(p.busId)
			}
			return
		}
		message, err := DecodeMessage(b)
		if err != nil {
			glog.Infof("[bus]bad message from %s = %s\n", p.busId, err)
			continue
		}
		self.dispatch(p.busId, message)
	}
}

func (self *LocalNode) dispatch(from Id, message *Message) {
	switch message.Command {
	case CmdObjectDelta:
		object := self.findObject(message.ObjectID)
		if object == nil {
			glog.V(2).Infof("[bus]%s\n", ErrUnmappedObject)
			return
		}
		if object.Core().Role() == RoleSlave {
			object.Core().enqueueDelta(message.Payload)
		}

	case CmdObjectMap:
		self.handleMap(from, message)

	case CmdObjectInstance:
		object := self.findObject(message.ObjectID)
		if object == nil {
			glog.V(2).Infof("[bus]%s\n", ErrUnmappedObject)
			return
		}
		object.Core().enqueueDelta(message.Payload)

	case CmdObjectUnmap:
		self.mutex.Lock()
		if peerIds, ok := self.subscribers[message.ObjectID]; ok {
			delete(peerIds, from)
		}
		self.mutex.Unlock()

	default:
		self.handleMessage(message)
	}
}

func (self *LocalNode) handleMap(from Id, message *Message) {
	object := self.findObject(message.ObjectID)
	if object == nil || !object.Core().IsMaster() {
		glog.V(2).Infof("[bus]map %s\n", ErrUnmappedObject)
		return
	}

	self.mutex.Lock()
	peerIds, ok := self.subscribers[message.ObjectID]
	if !ok {
		peerIds = map[Id]bool{}
		self.subscribers[message.ObjectID] = peerIds
	}
	peerIds[from] = true
	self.mutex.Unlock()

	// ship the instance data at the current version
	os := NewOutStream()
	WriteVersion(os, object.Core().Version())
	object.InstanceData(os)
	self.Send(from, &Message{
		Command:  CmdObjectInstance,
		ObjectID: message.ObjectID,
		Payload:  os.Bytes(),
	})
}

func (self *LocalNode) handleMessage(message *Message) {
	self.mutex.Lock()
	handler := self.handler
	object := self.objects[message.ObjectID]
	self.mutex.Unlock()

	if object == nil {
		glog.V(2).Infof("[bus]packet cmd=%d %s\n", message.Command, ErrUnmappedObject)
		return
	}
	if handler != nil {
		handler(message)
	}
}

func (self *LocalNode) findObject(routing uint64) Object {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.objects[routing]
}

// Subscribers returns the bus ids of the peers that mapped an object.
func (self *LocalNode) Subscribers(id Id) []Id {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return maps.Keys(self.subscribers[id.Routing()])
}

// PeerIDs returns the bus ids of the connected peers.
func (self *LocalNode) PeerIDs() []Id {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return maps.Keys(self.peers)
}

type peer struct {
	ctx    context.Context
	cancel context.CancelFunc

	busId     Id
	transport Transport
	monitor   *Monitor

	mutex sync.Mutex
	queue [][]byte
}

func (self *peer) enqueue(message []byte) {
	self.mutex.Lock()
	self.queue = append(self.queue, message)
	self.mutex.Unlock()

	self.monitor.NotifyAll()
}

func (self *peer) take() [][]byte {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	queue := self.queue
	self.queue = nil
	return queue
}

func (self *peer) close() {
	self.cancel()
	self.transport.Close()
}
