package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	connected []Peer
	received  []Envelope
	dropped   []string
}

func (h *recordingHandler) OnConnect(peer Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, peer)
}

func (h *recordingHandler) OnEnvelope(_ Peer, env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, env)
}

func (h *recordingHandler) OnDisconnect(peer Peer, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped = append(h.dropped, peer.Name+":"+reason)
}

func TestEnvelopeCodec(t *testing.T) {
	env, err := NewEnvelope("bank:deposit", map[string]int{"amount": 5})
	require.NoError(t, err)

	data, err := Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"bank:deposit","payload":{"amount":5}}`, string(data))

	back, err := Unmarshal(data)
	require.NoError(t, err)
	var payload struct{ Amount int }
	require.NoError(t, back.Bind(&payload))
	assert.Equal(t, 5, payload.Amount)

	_, err = NewEnvelope("", nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = Unmarshal([]byte("{nope"))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = NewEnvelope("x", func() {})
	assert.Error(t, err)
}

func TestEnvelopeKeepsRawPayload(t *testing.T) {
	env, err := NewEnvelope("x", json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(env.Payload))
}

func TestLoopbackRoundTrip(t *testing.T) {
	srv := NewLoopback()
	h := &recordingHandler{}
	require.NoError(t, srv.Start(context.Background(), h))
	require.ErrorIs(t, srv.Start(context.Background(), h), ErrAlreadyStarted)

	var pushed []Envelope
	alice := srv.Dial()
	peer, err := alice.Connect(context.Background(), Hello{Name: "alice"}, func(env Envelope) {
		pushed = append(pushed, env)
	})
	require.NoError(t, err)
	assert.Equal(t, PeerID(1), peer.ID)

	bob := srv.Dial()
	_, err = bob.Connect(context.Background(), Hello{Name: "bob"}, func(Envelope) {})
	require.NoError(t, err)
	assert.Len(t, srv.Peers(), 2)

	env, _ := NewEnvelope("ping", nil)
	require.NoError(t, alice.Send(env))
	require.Len(t, h.received, 1)
	assert.Equal(t, "1", h.received[0].Source)

	require.NoError(t, srv.Send(peer.ID, env))
	require.NoError(t, srv.Broadcast(env))
	assert.Len(t, pushed, 2)

	err = srv.Send(42, env)
	assert.True(t, errors.Is(err, ErrPeerNotFound))

	require.NoError(t, bob.Close())
	require.NoError(t, bob.Close())
	assert.Equal(t, []string{"bob:client closed"}, h.dropped)
	<-bob.Done()

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Broadcast(env), ErrTransportClosed)
	assert.ErrorIs(t, alice.Send(env), ErrConnectionClosed)
}

func TestLoopbackRequiresStartedServer(t *testing.T) {
	srv := NewLoopback()
	_, err := srv.Dial().Connect(context.Background(), Hello{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

func TestWriteLine(t *testing.T) {
	var out bytes.Buffer
	env, err := NewEnvelope("chat", map[string]string{"text": "hi"})
	require.NoError(t, err)

	require.NoError(t, WriteLine(&out, env))
	require.NoError(t, WriteLine(&out, env))
	assert.Equal(t, `{"event":"chat","payload":{"text":"hi"}}`+"\n"+`{"event":"chat","payload":{"text":"hi"}}`+"\n", out.String())

	assert.ErrorIs(t, WriteLine(&out, Envelope{}), ErrInvalidMessage)
}
