package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

type counterObject struct {
	core ObjectCore

	mutex sync.Mutex
	value uint32
}

const counterDirtyValue = uint64(1)

func (self *counterObject) Core() *ObjectCore {
	return &self.core
}

func (self *counterObject) Value() uint32 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.value
}

func (self *counterObject) SetValue(value uint32) {
	self.mutex.Lock()
	self.value = value
	self.mutex.Unlock()
	self.core.SetDirty(counterDirtyValue)
}

func (self *counterObject) InstanceData(os *OutStream) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	os.WriteUint32(self.value)
}

func (self *counterObject) Pack(os *OutStream) bool {
	if !self.core.TestDirty(counterDirtyValue) {
		return false
	}
	self.mutex.Lock()
	os.WriteUint32(self.value)
	self.mutex.Unlock()
	self.core.ClearDirty()
	return true
}

func (self *counterObject) Unpack(is *InStream) error {
	value, err := is.ReadUint32()
	if err != nil {
		return err
	}
	self.mutex.Lock()
	self.value = value
	self.mutex.Unlock()
	return nil
}

func connectNodes(ctx context.Context, a *LocalNode, b *LocalNode) {
	ta, tb := NewPipeTransportPair(ctx)
	a.AddPeer(b.BusID(), ta)
	b.AddPeer(a.BusID(), tb)
}

func TestCommitSync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	nodeA := NewLocalNodeWithDefaults(ctx)
	defer nodeA.Close()
	nodeB := NewLocalNodeWithDefaults(ctx)
	defer nodeB.Close()
	connectNodes(ctx, nodeA, nodeB)

	master := &counterObject{}
	id, err := nodeA.Register(master)
	assert.Equal(t, err, nil)
	assert.Equal(t, master.Core().IsMaster(), true)

	master.SetValue(7)
	v1, err := nodeA.Commit(master)
	assert.Equal(t, err, nil)
	assert.Equal(t, v1, Version{Lo: 1})

	slave := &counterObject{}
	err = nodeB.MapObject(slave, ObjectVersion{ID: id, Version: v1}, nodeA.BusID())
	assert.Equal(t, err, nil)

	err = nodeB.Sync(ctx, slave, v1)
	assert.Equal(t, err, nil)
	assert.Equal(t, slave.Value(), uint32(7))
	assert.Equal(t, slave.Core().Version(), v1)

	// a later commit reaches the subscribed slave
	master.SetValue(11)
	v2, err := nodeA.Commit(master)
	assert.Equal(t, err, nil)
	assert.Equal(t, v1.Less(v2), true)

	err = nodeB.Sync(ctx, slave, v2)
	assert.Equal(t, err, nil)
	assert.Equal(t, slave.Value(), uint32(11))
}

func TestCommitClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node := NewLocalNodeWithDefaults(ctx)
	defer node.Close()

	master := &counterObject{}
	_, err := node.Register(master)
	assert.Equal(t, err, nil)

	master.SetValue(3)
	v1, err := node.Commit(master)
	assert.Equal(t, err, nil)

	// clean commit keeps the version
	v2, err := node.Commit(master)
	assert.Equal(t, err, nil)
	assert.Equal(t, v2, v1)
}

func TestSyncAheadOfHead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node := NewLocalNodeWithDefaults(ctx)
	defer node.Close()

	master := &counterObject{}
	_, err := node.Register(master)
	assert.Equal(t, err, nil)

	err = node.Sync(ctx, master, VersionHead)
	assert.Equal(t, err, nil)

	err = node.Sync(ctx, master, Version{Lo: 5})
	versionErr, ok := err.(*VersionError)
	assert.Equal(t, ok, true)
	assert.Equal(t, versionErr.Requested, Version{Lo: 5})
}

func TestDeltaOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	nodeA := NewLocalNodeWithDefaults(ctx)
	defer nodeA.Close()
	nodeB := NewLocalNodeWithDefaults(ctx)
	defer nodeB.Close()
	connectNodes(ctx, nodeA, nodeB)

	master := &counterObject{}
	_, err := nodeA.Register(master)
	assert.Equal(t, err, nil)

	slave := &counterObject{}
	err = nodeB.MapObject(slave, master.Core().ObjectVersion(), nodeA.BusID())
	assert.Equal(t, err, nil)
	err = nodeB.Sync(ctx, slave, Version{})
	assert.Equal(t, err, nil)

	n := uint32(32)
	var last Version
	for i := uint32(1); i <= n; i += 1 {
		master.SetValue(i)
		last, err = nodeA.Commit(master)
		assert.Equal(t, err, nil)
	}

	// deltas apply in commit order, ending at the last value
	err = nodeB.Sync(ctx, slave, last)
	assert.Equal(t, err, nil)
	assert.Equal(t, slave.Value(), n)
	assert.Equal(t, slave.Core().Version(), last)
}

func TestLocalSlave(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	node := NewLocalNodeWithDefaults(ctx)
	defer node.Close()

	master := &counterObject{}
	_, err := node.Register(master)
	assert.Equal(t, err, nil)

	slave := &counterObject{}
	node.AttachLocal(slave, master.Core().ObjectVersion())

	master.SetValue(21)
	v1, err := node.Commit(master)
	assert.Equal(t, err, nil)

	err = node.Sync(ctx, slave, v1)
	assert.Equal(t, err, nil)
	assert.Equal(t, slave.Value(), uint32(21))

	node.DetachLocal(slave)
	assert.Equal(t, slave.Core().IsAttached(), false)
}

func TestApplicationPacket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	nodeA := NewLocalNodeWithDefaults(ctx)
	defer nodeA.Close()
	nodeB := NewLocalNodeWithDefaults(ctx)
	defer nodeB.Close()
	connectNodes(ctx, nodeA, nodeB)

	target := &counterObject{}
	id, err := nodeB.Register(target)
	assert.Equal(t, err, nil)

	received := make(chan *Message, 1)
	nodeB.SetHandler(func(message *Message) {
		received <- message
	})

	frameID := NewId()
	nodeA.Send(nodeB.BusID(), &Message{
		Command:     CmdApplication + 3,
		ObjectID:    id.Routing(),
		FrameNumber: 9,
		FrameID:     frameID,
		Payload:     []byte{1, 2, 3},
	})

	select {
	case message := <-received:
		assert.Equal(t, message.Command, CmdApplication+3)
		assert.Equal(t, message.ObjectID, id.Routing())
		assert.Equal(t, message.FrameNumber, uint32(9))
		assert.Equal(t, message.FrameID, frameID)
		assert.Equal(t, message.Payload, []byte{1, 2, 3})
	case <-ctx.Done():
		t.Fatal("no packet received")
	}
}

func TestUnmapStopsDeltas(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	nodeA := NewLocalNodeWithDefaults(ctx)
	defer nodeA.Close()
	nodeB := NewLocalNodeWithDefaults(ctx)
	defer nodeB.Close()
	connectNodes(ctx, nodeA, nodeB)

	master := &counterObject{}
	id, err := nodeA.Register(master)
	assert.Equal(t, err, nil)

	slave := &counterObject{}
	err = nodeB.MapObject(slave, master.Core().ObjectVersion(), nodeA.BusID())
	assert.Equal(t, err, nil)
	err = nodeB.Sync(ctx, slave, Version{})
	assert.Equal(t, err, nil)

	// wait for the subscription to land on the master side
	for len(nodeA.Subscribers(id)) == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscription never arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}

	nodeB.UnmapObject(slave)
	assert.Equal(t, slave.Core().IsAttached(), false)

	for len(nodeA.Subscribers(id)) != 0 {
		select {
		case <-ctx.Done():
			t.Fatal("unmap never arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
