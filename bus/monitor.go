package bus

import (
	"sync"
)

// Monitor wakes all waiters when a state change is published.
type Monitor struct {
	mutex  sync.Mutex
	notify chan struct{}
}

func NewMonitor() *Monitor {
	return &Monitor{
		notify: make(chan struct{}),
	}
}

// NotifyChannel returns a channel closed at the next NotifyAll.
func (self *Monitor) NotifyChannel() chan struct{} {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return self.notify
}

func (self *Monitor) NotifyAll() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	close(self.notify)
	self.notify = make(chan struct{})
}
