package protocol

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/resourcekit/pkg/generic"
)

// Control events exchanged while a client connects.
const (
	EventHello   = "$hello"
	EventWelcome = "$welcome"
)

// MaxEnvelopeSize bounds one encoded envelope on every transport.
const MaxEnvelopeSize = 1 << 20

// Envelope is one named event on the wire.
type Envelope struct {
	Event string `json:"event"`
	// Source is set by the server to the sending peer before handing the
	// envelope to its handler. Clients leave it empty.
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload as JSON. A nil payload is left out.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, env.Validate()
	}
	if raw, ok := payload.(json.RawMessage); ok {
		env.Payload = raw
		return env, env.Validate()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "failed to encode payload of %s", event)
	}
	env.Payload = data
	return env, env.Validate()
}

func (e Envelope) Validate() error {
	if e.Event == "" {
		return errors.Wrap(ErrInvalidMessage, "empty event name")
	}
	return nil
}

// Bind decodes the payload into out. An empty payload leaves out untouched.
func (e Envelope) Bind(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return errors.Wrapf(err, "failed to decode payload of %s", e.Event)
	}
	return nil
}

// Marshal encodes e as a single line of JSON.
var lineBuffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// WriteLine writes e to w as one newline-terminated JSON line in a single
// Write call.
func WriteLine(w io.Writer, e Envelope) error {
	data, err := Marshal(e)
	if err != nil {
		return err
	}
	return lineBuffers.With(func(buf *bytes.Buffer) error {
		buf.Grow(len(data) + 1)
		buf.Write(data)
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func Marshal(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal envelope")
	}
	if len(data) > MaxEnvelopeSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(data))
	}
	return data, nil
}

func Unmarshal(data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) > MaxEnvelopeSize {
		return Envelope{}, errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(data))
	}
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, errors.Wrap(ErrInvalidMessage, err.Error())
	}
	return e, e.Validate()
}

// Hello is the payload of the first envelope a client sends.
type Hello struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// Welcome is the server's answer to Hello.
type Welcome struct {
	ID      PeerID `json:"id"`
	Session string `json:"session"`
}
