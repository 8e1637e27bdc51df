package websocket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
)

var _ protocol.ClientTransport = (*Client)(nil)

// Client dials a Server at URL, e.g. ws://127.0.0.1:30120/ws.
type Client struct {
	url          string
	writeTimeout time.Duration
	logger       log.Log

	mu   sync.Mutex
	conn *Connection
	done chan struct{}
}

func NewClient(url string, logger log.Log) *Client {
	if logger == nil {
		logger = log.Provide()
	}
	return &Client{
		url:          url,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger.With(log.String("transport", "websocket")),
		done:         make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context, hello protocol.Hello, h protocol.ClientHandler) (protocol.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return protocol.Peer{}, protocol.ErrAlreadyConnected
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return protocol.Peer{}, errors.Wrapf(err, "failed to dial %s", c.url)
	}
	conn := newConnection(ws, c.writeTimeout)

	peer, err := handshake(ctx, conn, hello)
	if err != nil {
		_ = conn.Close()
		return protocol.Peer{}, err
	}
	peer.Addr = strings.TrimPrefix(c.url, "ws://")
	c.conn = conn

	go c.readLoop(conn, h)
	return peer, nil
}

func handshake(ctx context.Context, conn *Connection, hello protocol.Hello) (protocol.Peer, error) {
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
	_ = conn.conn.SetReadDeadline(deadline)
	reply, err := conn.ReceiveEnvelope()
	if err != nil {
		return protocol.Peer{}, errors.Wrap(protocol.ErrHandshakeFailed, err.Error())
	}
	_ = conn.conn.SetReadDeadline(time.Time{})

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
		c.mu.Lock()
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		c.mu.Unlock()
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
	return conn.Close()
}
