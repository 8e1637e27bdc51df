package protocol

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	_ ServerTransport = (*LoopbackServer)(nil)
	_ ClientTransport = (*LoopbackClient)(nil)
)

// LoopbackServer is an in-process ServerTransport. Envelopes are delivered
// synchronously in the sender's goroutine.
type LoopbackServer struct {
	mu      sync.RWMutex
	handler ServerHandler
	closed  atomic.Bool
	peers   *PeerSet[*LoopbackClient]
}

func NewLoopback() *LoopbackServer {
	return &LoopbackServer{peers: NewPeerSet[*LoopbackClient]()}
}

func (s *LoopbackServer) Start(_ context.Context, h ServerHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return ErrAlreadyStarted
	}
	s.handler = h
	return nil
}

// Dial returns an unconnected client of s.
func (s *LoopbackServer) Dial() *LoopbackClient {
	return &LoopbackClient{server: s, done: make(chan struct{})}
}

func (s *LoopbackServer) Send(id PeerID, env Envelope) error {
	if s.closed.Load() {
		return ErrTransportClosed
	}
	if err := env.Validate(); err != nil {
		return err
	}
	c, ok := s.peers.Conn(id)
	if !ok {
		return errors.Wrapf(ErrPeerNotFound, "peer %s", id)
	}
	return c.deliver(env)
}

func (s *LoopbackServer) Broadcast(env Envelope) error {
	if s.closed.Load() {
		return ErrTransportClosed
	}
	if err := env.Validate(); err != nil {
		return err
	}
	return Fanout(s.peers.Conns(), func(c *LoopbackClient) error {
		return c.deliver(env)
	})
}

func (s *LoopbackServer) Peers() []Peer {
	return s.peers.Peers()
}

func (s *LoopbackServer) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, c := range s.peers.Conns() {
		_ = c.Close()
	}
	return nil
}

func (s *LoopbackServer) current() ServerHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

func (s *LoopbackServer) connect(c *LoopbackClient, hello Hello) (Peer, error) {
	if s.closed.Load() {
		return Peer{}, ErrTransportClosed
	}
	h := s.current()
	if h == nil {
		return Peer{}, errors.Wrap(ErrHandshakeFailed, "server not started")
	}
	peer := s.peers.Add(hello, "loopback", c)
	h.OnConnect(peer)
	return peer, nil
}

func (s *LoopbackServer) disconnect(peer Peer, reason string) {
	if !s.peers.Remove(peer.ID) {
		return
	}
	if h := s.current(); h != nil {
		h.OnDisconnect(peer, reason)
	}
}

// LoopbackClient is the client end of a LoopbackServer.
type LoopbackClient struct {
	server  *LoopbackServer
	mu      sync.RWMutex
	peer    Peer
	handler ClientHandler
	done    chan struct{}
	closed  atomic.Bool
}

func (c *LoopbackClient) Connect(_ context.Context, hello Hello, h ClientHandler) (Peer, error) {
	c.mu.Lock()
	if c.handler != nil {
		c.mu.Unlock()
		return Peer{}, ErrAlreadyConnected
	}
	c.handler = h
	c.mu.Unlock()

	peer, err := c.server.connect(c, hello)
	if err != nil {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
		return Peer{}, err
	}
	c.mu.Lock()
	c.peer = peer
	c.mu.Unlock()
	return peer, nil
}

func (c *LoopbackClient) Send(env Envelope) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := env.Validate(); err != nil {
		return err
	}
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()
	if peer.ID == 0 {
		return ErrNotConnected
	}
	h := c.server.current()
	if h == nil || c.server.closed.Load() {
		return ErrTransportClosed
	}
	env.Source = peer.ID.String()
	h.OnEnvelope(peer, env)
	return nil
}

func (c *LoopbackClient) Done() <-chan struct{} {
	return c.done
}

func (c *LoopbackClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()
	if peer.ID != 0 {
		c.server.disconnect(peer, "client closed")
	}
	return nil
}

func (c *LoopbackClient) deliver(env Envelope) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(env)
	}
	return nil
}
