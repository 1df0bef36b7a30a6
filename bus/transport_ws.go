package bus

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type WsTransportSettings struct {
	WsHandshakeTimeout time.Duration
	AuthTimeout        time.Duration
	ReconnectTimeout   time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	ReceiveBufferSize  int
}

func DefaultWsTransportSettings() *WsTransportSettings {
	return &WsTransportSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AuthTimeout:        2 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		PingTimeout:        1 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        15 * time.Second,
		ReceiveBufferSize:  32,
	}
}

type reconnect struct {
	timeout time.Duration
	start   time.Time
}

func newReconnect(timeout time.Duration) *reconnect {
	return &reconnect{
		timeout: timeout,
		start:   time.Now(),
	}
}

func (self *reconnect) After() <-chan time.Time {
	// jitter so peers reconnecting together spread out
	remaining := self.timeout - time.Since(self.start)
	jittered := time.Duration(float64(remaining) * (0.5 + 0.5*rand.Float64()))
	return time.After(jittered)
}

// WsTransport is the client end of a websocket connection to a session
// listener. It dials, authenticates with the node jwt, then keeps the
// connection alive with empty ping messages, reconnecting on failure.
// The connection stays down for good only when the context ends.
type WsTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	url  string
	auth *NodeAuth

	settings *WsTransportSettings

	sendMutex sync.Mutex
	sendWs    *websocket.Conn

	receive chan []byte
}

func NewWsTransportWithDefaults(ctx context.Context, url string, auth *NodeAuth) *WsTransport {
	return NewWsTransport(ctx, url, auth, DefaultWsTransportSettings())
}

func NewWsTransport(ctx context.Context, url string, auth *NodeAuth, settings *WsTransportSettings) *WsTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	transport := &WsTransport{
		ctx:      cancelCtx,
		cancel:   cancel,
		url:      url,
		auth:     auth,
		settings: settings,
		receive:  make(chan []byte, settings.ReceiveBufferSize),
	}
	go transport.run()
	return transport
}

func (self *WsTransport) run() {
	defer self.cancel()

	nodeId, _ := self.auth.NodeId()
	authBytes := []byte(self.auth.ByJwt)

	for {
		reconnect := newReconnect(self.settings.ReconnectTimeout)
		connect := func() (*websocket.Conn, error) {
			dialer := &websocket.Dialer{
				HandshakeTimeout: self.settings.WsHandshakeTimeout,
			}
			ws, _, err := dialer.DialContext(self.ctx, self.url, nil)
			if err != nil {
				return nil, err
			}

			success := false
			defer func() {
				if !success {
					ws.Close()
				}
			}()

			ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
			if err := ws.WriteMessage(websocket.BinaryMessage, authBytes); err != nil {
				return nil, err
			}
			ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
			if messageType, message, err := ws.ReadMessage(); err != nil {
				return nil, err
			} else {
				// verify the auth echo
				switch messageType {
				case websocket.BinaryMessage:
					if !bytes.Equal(authBytes, message) {
						return nil, fmt.Errorf("auth response error: bad bytes")
					}
				default:
					return nil, fmt.Errorf("auth response error")
				}
			}

			success = true
			return ws, nil
		}

		ws, err := connect()
		if err != nil {
			glog.Infof("[t]auth error %s = %s\n", nodeId, err)
			select {
			case <-self.ctx.Done():
				return
			case <-reconnect.After():
				continue
			}
		}

		self.handle(ws, nodeId)

		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
		}
	}
}

func (self *WsTransport) handle(ws *websocket.Conn, nodeId Id) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	self.sendMutex.Lock()
	self.sendWs = ws
	self.sendMutex.Unlock()
	defer func() {
		self.sendMutex.Lock()
		self.sendWs = nil
		self.sendMutex.Unlock()
	}()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
				self.sendMutex.Lock()
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 0))
				self.sendMutex.Unlock()
				if err != nil {
					// a websocket deadline timeout cannot be recovered
					return
				}
			}
		}
	}()

	for {
		select {
		case <-handleCtx.Done():
			return
		default:
		}

		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[tr]%s<- error = %s\n", nodeId, err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if 0 == len(message) {
				// ping
				glog.V(2).Infof("[tr]ping %s<-\n", nodeId)
				continue
			}

			select {
			case <-handleCtx.Done():
				return
			case self.receive <- message:
				glog.V(2).Infof("[tr]%s<-\n", nodeId)
			case <-time.After(self.settings.ReadTimeout):
				glog.Infof("[tr]drop %s<-\n", nodeId)
			}
		default:
			glog.V(2).Infof("[tr]other=%d %s<-\n", messageType, nodeId)
		}
	}
}

func (self *WsTransport) Send(ctx context.Context, message []byte) error {
	self.sendMutex.Lock()
	defer self.sendMutex.Unlock()

	if self.sendWs == nil {
		return ErrTransportClosed
	}
	self.sendWs.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	return self.sendWs.WriteMessage(websocket.BinaryMessage, message)
}

func (self *WsTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-self.ctx.Done():
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case message := <-self.receive:
		return message, nil
	}
}

func (self *WsTransport) Close() {
	self.cancel()
}

// wsConnTransport wraps one accepted server-side connection.
type wsConnTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *WsTransportSettings

	sendMutex sync.Mutex
	ws        *websocket.Conn

	receive chan []byte
}

func newWsConnTransport(ctx context.Context, ws *websocket.Conn, settings *WsTransportSettings) *wsConnTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	transport := &wsConnTransport{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		ws:       ws,
		receive:  make(chan []byte, settings.ReceiveBufferSize),
	}
	go transport.run()
	return transport
}

func (self *wsConnTransport) run() {
	defer func() {
		self.cancel()
		self.ws.Close()
	}()

	go func() {
		for {
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
				self.sendMutex.Lock()
				self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				err := self.ws.WriteMessage(websocket.BinaryMessage, make([]byte, 0))
				self.sendMutex.Unlock()
				if err != nil {
					self.cancel()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		messageType, message, err := self.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage || 0 == len(message) {
			continue
		}

		select {
		case <-self.ctx.Done():
			return
		case self.receive <- message:
		}
	}
}

func (self *wsConnTransport) Send(ctx context.Context, message []byte) error {
	self.sendMutex.Lock()
	defer self.sendMutex.Unlock()

	select {
	case <-self.ctx.Done():
		return ErrTransportClosed
	default:
	}

	self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	return self.ws.WriteMessage(websocket.BinaryMessage, message)
}

func (self *wsConnTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-self.ctx.Done():
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case message := <-self.receive:
		return message, nil
	}
}

func (self *wsConnTransport) Close() {
	self.cancel()
}

// WsListener accepts websocket connections from session nodes,
// authenticates the node jwt against the shared session secret, and
// attaches the accepted peer to the local node.
type WsListener struct {
	ctx    context.Context
	cancel context.CancelFunc

	node   *LocalNode
	secret []byte

	settings *WsTransportSettings

	upgrader *websocket.Upgrader
}

func NewWsListenerWithDefaults(ctx context.Context, node *LocalNode, secret []byte) *WsListener {
	return NewWsListener(ctx, node, secret, DefaultWsTransportSettings())
}

func NewWsListener(ctx context.Context, node *LocalNode, secret []byte, settings *WsTransportSettings) *WsListener {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &WsListener{
		ctx:    cancelCtx,
		cancel: cancel,
		node:   node,
		secret: secret,
		settings: settings,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: settings.WsHandshakeTimeout,
		},
	}
}

// ServeHTTP upgrades the request, reads the auth message, verifies the
// jwt, echoes the auth bytes back, then hands the connection to the node.
func (self *WsListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[l]upgrade error = %s\n", err)
		return
	}

	success := false
	defer func() {
		if !success {
			ws.Close()
		}
	}()

	ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
	messageType, authBytes, err := ws.ReadMessage()
	if err != nil || messageType != websocket.BinaryMessage {
		glog.Infof("[l]auth read error = %s\n", err)
		return
	}

	nodeJwt, err := ParseNodeJwt(string(authBytes), self.secret)
	if err != nil {
		glog.Infof("[l]auth verify error = %s\n", err)
		return
	}

	ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
	if err := ws.WriteMessage(websocket.BinaryMessage, authBytes); err != nil {
		return
	}

	success = true
	transport := newWsConnTransport(self.ctx, ws, self.settings)
	self.node.AddPeer(nodeJwt.NodeId, transport)
	glog.V(1).Infof("[l]peer %s attached\n", nodeJwt.NodeId)
}

func (self *WsListener) Close() {
	self.cancel()
}
