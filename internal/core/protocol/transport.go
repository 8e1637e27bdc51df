package protocol

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// PeerID is assigned by a server transport to each connected client, starting
// at 1. It doubles as the player id of the simulated runtime.
type PeerID uint32

func (id PeerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Peer describes a connected client.
type Peer struct {
	ID          PeerID
	Session     uuid.UUID
	Name        string
	Identifiers []string
	Addr        string
}

// ServerHandler receives the traffic of a ServerTransport. Calls for one peer
// are sequential; calls for different peers may be concurrent.
type ServerHandler interface {
	OnConnect(peer Peer)
	OnEnvelope(peer Peer, env Envelope)
	OnDisconnect(peer Peer, reason string)
}

// ServerTransport accepts clients and exchanges envelopes with them.
type ServerTransport interface {
	// Start begins accepting clients in the background.
	Start(ctx context.Context, h ServerHandler) error
	Send(id PeerID, env Envelope) error
	// Broadcast sends env to every connected peer and returns the first error.
	Broadcast(env Envelope) error
	Peers() []Peer
	Close() error
}

// ClientHandler receives envelopes pushed by the server.
type ClientHandler func(env Envelope)

// ClientTransport is the client end of a ServerTransport.
type ClientTransport interface {
	// Connect performs the hello/welcome handshake and then delivers inbound
	// envelopes to h in the background. It returns the identity the server
	// assigned.
	Connect(ctx context.Context, hello Hello, h ClientHandler) (Peer, error)
	Send(env Envelope) error
	// Done is closed once the connection is gone.
	Done() <-chan struct{}
	Close() error
}
