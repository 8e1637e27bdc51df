package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/resourcekit/internal/core/protocol"
)

// Connection wraps a websocket conn with envelope framing. Writes are
// serialized; reads happen on a single goroutine.
type Connection struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       atomic.Bool
	done         chan struct{}
}

func newConnection(conn *websocket.Conn, writeTimeout time.Duration) *Connection {
	conn.SetReadLimit(protocol.MaxEnvelopeSize)
	return &Connection{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// SendEnvelope writes env as one text message.
func (c *Connection) SendEnvelope(env protocol.Envelope) error {
	if c.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err = c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// ReceiveEnvelope blocks for the next text message.
func (c *Connection) ReceiveEnvelope() (protocol.Envelope, error) {
	if c.closed.Load() {
		return protocol.Envelope{}, protocol.ErrConnectionClosed
	}
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Envelope{}, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage {
		return protocol.Envelope{}, errors.Wrap(protocol.ErrInvalidMessage, "expected text message")
	}
	return protocol.Unmarshal(data)
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and releases the socket. Repeated calls are no-ops.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}
