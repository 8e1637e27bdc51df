// Package quic carries protocol envelopes over quic-go, one bidirectional
// stream per client.
package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
)

var _ protocol.ServerTransport = (*Server)(nil)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

type Config struct {
	Addr string
	// TLS defaults to a self-signed certificate.
	TLS              *tls.Config
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// Server is a QUIC protocol.ServerTransport.
type Server struct {
	config Config
	logger log.Log

	mu       sync.RWMutex
	handler  protocol.ServerHandler
	listener *quic.Listener
	cancel   context.CancelFunc

	peers  *protocol.PeerSet[*Connection]
	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewServer(config Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{
		config: config,
		logger: logger.With(log.String("transport", "quic")),
		peers:  protocol.NewPeerSet[*Connection](),
	}
}

func (s *Server) Start(ctx context.Context, h protocol.ServerHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return protocol.ErrAlreadyStarted
	}

	tlsConfig := s.config.TLS
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = SelfSignedTLS(); err != nil {
			return err
		}
	}

	listener, err := quic.ListenAddr(s.config.Addr, tlsConfig, defaultQUICConfig())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.Addr)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.handler = h
	s.listener = listener
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx, h, listener)

	s.logger.Info("QUIC transport started", log.String("address", listener.Addr().String()))
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context, h protocol.ServerHandler, listener *quic.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil && !s.closed.Load() {
				s.logger.Error("Failed to accept QUIC connection", log.Error(err))
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, h, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, h protocol.ServerHandler, qc *quic.Conn) {
	hsCtx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	stream, err := qc.AcceptStream(hsCtx)
	cancel()
	if err != nil {
		_ = qc.CloseWithError(1, "no stream")
		return
	}
	conn := newConnection(qc, stream, s.config.WriteTimeout)

	peer, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("Handshake failed", log.String("remote_addr", conn.RemoteAddr()), log.Error(err))
		_ = conn.CloseWithReason("handshake failed")
		return
	}

	s.logger.Debug("Client connected", log.Uint64("peer", uint64(peer.ID)), log.String("name", peer.Name))
	h.OnConnect(peer)

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
			if s.closed.Load() {
				reason = "transport closed"
			}
			return
		}
		env.Source = peer.ID.String()
		h.OnEnvelope(peer, env)
	}
}

func (s *Server) handshake(conn *Connection) (protocol.Peer, error) {
	conn.setReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	env, err := conn.ReceiveEnvelope()
	if err != nil {
		return protocol.Peer{}, err
	}
	conn.setReadDeadline(time.Time{})

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

func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, c := range s.peers.Conns() {
		_ = c.CloseWithReason("server closed")
	}

	s.mu.RLock()
	listener, cancel := s.listener, s.cancel
	s.mu.RUnlock()

	var err error
	if cancel != nil {
		cancel()
	}
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()
	s.logger.Info("QUIC transport stopped")
	return err
}
