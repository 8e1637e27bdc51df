// Package websocket carries protocol envelopes over gorilla/websocket text
// frames.
package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
)

var _ protocol.ServerTransport = (*Server)(nil)

const (
	DefaultPath             = "/ws"
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

type Config struct {
	// Addr to listen on. When empty Start only binds the handler and the
	// server is expected to be mounted with ServeHTTP.
	Addr             string
	Path             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Server is a websocket protocol.ServerTransport.
type Server struct {
	config   Config
	logger   log.Log
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	handler  protocol.ServerHandler
	http     *http.Server
	listener net.Listener

	peers  *protocol.PeerSet[*Connection]
	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewServer(config Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	config = config.withDefaults()
	return &Server{
		config: config,
		logger: logger.With(log.String("transport", "websocket")),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: config.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		peers: protocol.NewPeerSet[*Connection](),
	}
}

func (s *Server) Start(ctx context.Context, h protocol.ServerHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler != nil {
		return protocol.ErrAlreadyStarted
	}
	s.handler = h
	if s.config.Addr == "" {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		s.handler = nil
		return errors.Wrapf(err, "failed to listen on %s", s.config.Addr)
	}
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, s)
	s.listener = listener
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: s.config.HandshakeTimeout}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", log.Error(err))
		}
	}()

	s.logger.Info("WebSocket transport started", log.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil when no listener was started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := s.current()
	if h == nil || s.closed.Load() {
		http.Error(w, "transport not running", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}
	conn := newConnection(ws, s.config.WriteTimeout)

	peer, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("Handshake failed", log.String("remote_addr", conn.RemoteAddr()), log.Error(err))
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.logger.Debug("Client connected", log.Uint64("peer", uint64(peer.ID)), log.String("name", peer.Name))
	h.OnConnect(peer)
	s.readLoop(h, peer, conn)
}

func (s *Server) handshake(conn *Connection) (protocol.Peer, error) {
	_ = conn.conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	env, err := conn.ReceiveEnvelope()
	if err != nil {
		return protocol.Peer{}, err
	}
	_ = conn.conn.SetReadDeadline(time.Time{})

	if env.Event != protocol.EventHello {
		return protocol.Peer{}, errors.Wrapf(protocol.ErrHandshakeFailed, "unexpected %s", env.Event)
	}
	var hello protocol.Hello
	if err = env.Bind(&hello); err != nil {
		return protocol.Peer{}, errors.Wrap(protocol.ErrHandshakeFailed, err.Error())
	}

	peer := s.peers.Add(hello, conn.RemoteAddr(), conn)
	welcome, err := protocol.NewEnvelope(protocol.EventWelcome, protocol.Welcome{ID: peer.ID, Session: peer.Session.String()})
	if err == nil {
		err = conn.SendEnvelope(welcome)
	}
	if err != nil {
		s.peers.Remove(peer.ID)
		return protocol.Peer{}, err
	}
	return peer, nil
}

func (s *Server) readLoop(h protocol.ServerHandler, peer protocol.Peer, conn *Connection) {
	reason := "connection closed"
	defer func() {
		_ = conn.Close()
		if s.peers.Remove(peer.ID) {
			h.OnDisconnect(peer, reason)
		}
	}()

	for {
		env, err := conn.ReceiveEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrInvalidMessage) {
				s.logger.Warn("Dropping malformed envelope", log.Uint64("peer", uint64(peer.ID)), log.Error(err))
				continue
			}
			switch {
			case s.closed.Load():
				reason = "transport closed"
			case !websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseGoingAway):
				reason = err.Error()
			}
			return
		}
		env.Source = peer.ID.String()
		h.OnEnvelope(peer, env)
	}
}

func (s *Server) Send(id protocol.PeerID, env protocol.Envelope) error {
	if s.closed.Load() {
		return protocol.ErrTransportClosed
	}
	conn, ok := s.peers.Conn(id)
	if !ok {
		return errors.Wrapf(protocol.ErrPeerNotFound, "peer %s", id)
	}
	return conn.SendEnvelope(env)
}

func (s *Server) Broadcast(env protocol.Envelope) error {
	if s.closed.Load() {
		return protocol.ErrTransportClosed
	}
	return protocol.Fanout(s.peers.Conns(), func(c *Connection) error {
		return c.SendEnvelope(env)
	})
}

func (s *Server) Peers() []protocol.Peer {
	return s.peers.Peers()
}

// Close disconnects every peer and stops the listener.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, c := range s.peers.Conns() {
		_ = c.Close()
	}

	s.mu.RLock()
	srv := s.http
	s.mu.RUnlock()
	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	s.logger.Info("WebSocket transport stopped")
	return err
}

func (s *Server) current() protocol.ServerHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}
