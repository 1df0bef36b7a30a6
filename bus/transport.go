package bus

import (
	"context"
	"errors"
)

// Transport moves framed messages between two peers. Send and Receive
// carry whole frames. Implementations own the framing on the underlying
// medium.
type Transport interface {
	Send(ctx context.Context, message []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close()
}

var ErrTransportClosed = errors.New("transport closed")

const PipeTransportBufferSize = 32

// PipeTransport is an in-process transport. NewPipeTransportPair returns
// the two ends of a bidirectional pipe, used for single-machine
// configurations and tests.
type PipeTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	send    chan []byte
	receive chan []byte
}

func NewPipeTransportPair(ctx context.Context) (*PipeTransport, *PipeTransport) {
	cancelCtx, cancel := context.WithCancel(ctx)

	forward := make(chan []byte, PipeTransportBufferSize)
	backward := make(chan []byte, PipeTransportBufferSize)

	a := &PipeTransport{
		ctx:     cancelCtx,
		cancel:  cancel,
		send:    forward,
		receive: backward,
	}
	b := &PipeTransport{
		ctx:     cancelCtx,
		cancel:  cancel,
		send:    backward,
		receive: forward,
	}
	return a, b
}

func (self *PipeTransport) Send(ctx context.Context, message []byte) error {
	select {
	case <-self.ctx.Done():
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	case self.send <- message:
		return nil
	}
}

func (self *PipeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-self.ctx.Done():
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case message := <-self.receive:
		return message, nil
	}
}

func (self *PipeTransport) Close() {
	self.cancel()
}
