package quic

import (
	"bufio"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/resourcekit/internal/core/protocol"
)

// Connection carries newline-delimited envelopes over the single
// bidirectional stream of a QUIC connection.
type Connection struct {
	conn   *quic.Conn
	stream *quic.Stream
	reader *bufio.Reader

	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       atomic.Bool
}

func newConnection(conn *quic.Conn, stream *quic.Stream, writeTimeout time.Duration) *Connection {
	return &Connection{
		conn:         conn,
		stream:       stream,
		reader:       bufio.NewReaderSize(stream, 64*1024),
		writeTimeout: writeTimeout,
	}
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Connection) SendEnvelope(env protocol.Envelope) error {
	if c.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	if err := env.Validate(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := protocol.WriteLine(c.stream, env); err != nil {
		return errors.Wrap(err, "failed to write envelope")
	}
	return nil
}

// ReceiveEnvelope reads the next line. Lines longer than the envelope limit
// fail with ErrMessageTooLarge and end the connection.
func (c *Connection) ReceiveEnvelope() (protocol.Envelope, error) {
	if c.closed.Load() {
		return protocol.Envelope{}, protocol.ErrConnectionClosed
	}
	var line []byte
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			return protocol.Envelope{}, errors.Wrap(err, "failed to read envelope")
		}
		line = append(line, chunk...)
		if len(line) > protocol.MaxEnvelopeSize {
			return protocol.Envelope{}, errors.Wrapf(protocol.ErrMessageTooLarge, "%d bytes", len(line))
		}
		if !isPrefix {
			break
		}
	}
	return protocol.Unmarshal(line)
}

func (c *Connection) setReadDeadline(t time.Time) {
	_ = c.stream.SetReadDeadline(t)
}

// Close closes the stream and the connection. Repeated calls are no-ops.
func (c *Connection) Close() error {
	return c.CloseWithReason("closed")
}

func (c *Connection) CloseWithReason(reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, reason)
}
