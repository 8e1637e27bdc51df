package quic

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
)

var _ protocol.ClientTransport = (*Client)(nil)

// Client dials a Server at addr, e.g. 127.0.0.1:30121.
type Client struct {
	addr   string
	tls    *tls.Config
	logger log.Log

	mu       sync.Mutex
	conn     *Connection
	done     chan struct{}
	doneOnce sync.Once
}

// NewClient returns a client for addr. A nil tlsConfig accepts the server's
// self-signed certificate.
func NewClient(addr string, tlsConfig *tls.Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.Provide()
	}
	if tlsConfig == nil {
		tlsConfig = InsecureClientTLS()
	}
	return &Client{
		addr:   addr,
		tls:    tlsConfig,
		logger: logger.With(log.String("transport", "quic")),
		done:   make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context, hello protocol.Hello, h protocol.ClientHandler) (protocol.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return protocol.Peer{}, protocol.ErrAlreadyConnected
	}

	qc, err := quic.DialAddr(ctx, c.addr, c.tls, defaultQUICConfig())
	if err != nil {
		return protocol.Peer{}, errors.Wrapf(err, "failed to dial %s", c.addr)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "no stream")
		return protocol.Peer{}, errors.Wrap(err, "failed to open stream")
	}
	conn := newConnection(qc, stream, DefaultWriteTimeout)

	peer, err := c.handshake(ctx, conn, hello)
	if err != nil {
		_ = conn.CloseWithReason("handshake failed")
		return protocol.Peer{}, err
	}
	peer.Addr = c.addr
	c.conn = conn

	go c.readLoop(conn, h)
	return peer, nil
}

func (c *Client) handshake(ctx context.Context, conn *Connection, hello protocol.Hello) (protocol.Peer, error) {
	env, err := protocol.NewEnvelope(protocol.EventHello, hello)
	if err != nil {
		return protocol.Peer{}, err
	}
	if err = conn.SendEnvelope(env); err != nil {
		return protocol.Peer{}, err
	}

	deadline := time.Now().Add(DefaultHandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.setReadDeadline(deadline)
	reply, err := conn.ReceiveEnvelope()
	if err != nil {
		return protocol.Peer{}, errors.Wrap(protocol.ErrHandshakeFailed, err.Error())
	}
	conn.setReadDeadline(time.Time{})

	if reply.Event != protocol.EventWelcome {
		return protocol.Peer{}, errors.Wrapf(protocol.ErrHandshakeFailed, "unexpected %s", reply.Event)
	}
	var welcome protocol.Welcome
	if err = reply.Bind(&welcome); err != nil {
		return protocol.Peer{}, errors.Wrap(protocol.ErrHandshakeFailed, err.Error())
	}
	session, _ := uuid.Parse(welcome.Session)
	return protocol.Peer{
		ID:          welcome.ID,
		Session:     session,
		Name:        hello.Name,
		Identifiers: hello.Identifiers,
	}, nil
}

func (c *Client) readLoop(conn *Connection, h protocol.ClientHandler) {
	defer func() {
		_ = conn.Close()
		c.doneOnce.Do(func() { close(c.done) })
	}()
	for {
		env, err := conn.ReceiveEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrInvalidMessage) {
				c.logger.Warn("Dropping malformed envelope", log.Error(err))
				continue
			}
			return
		}
		if h != nil {
			h(env)
		}
	}
}

func (c *Client) Send(env protocol.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return protocol.ErrNotConnected
	}
	return conn.SendEnvelope(env)
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.CloseWithReason("client closed")
}
