package protocol

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// broadcastLimit caps concurrent sends of one Broadcast.
const broadcastLimit = 16

// PeerSet tracks the connected peers of a server transport together with the
// transport-specific connection C of each.
type PeerSet[C any] struct {
	next  atomic.Uint32
	mu    sync.RWMutex
	peers map[PeerID]peerEntry[C]
}

type peerEntry[C any] struct {
	peer Peer
	conn C
}

func NewPeerSet[C any]() *PeerSet[C] {
	return &PeerSet[C]{peers: make(map[PeerID]peerEntry[C])}
}

// Add registers conn under a fresh PeerID built from hello.
func (s *PeerSet[C]) Add(hello Hello, addr string, conn C) Peer {
	peer := Peer{
		ID:          PeerID(s.next.Add(1)),
		Session:     uuid.New(),
		Name:        hello.Name,
		Identifiers: hello.Identifiers,
		Addr:        addr,
	}
	s.mu.Lock()
	s.peers[peer.ID] = peerEntry[C]{peer: peer, conn: conn}
	s.mu.Unlock()
	return peer
}

// Remove drops id and reports whether it was present.
func (s *PeerSet[C]) Remove(id PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return false
	}
	delete(s.peers, id)
	return true
}

func (s *PeerSet[C]) Conn(id PeerID) (C, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.peers[id]
	return e.conn, ok
}

// Peers returns the connected peers ordered by id.
func (s *PeerSet[C]) Peers() []Peer {
	s.mu.RLock()
	out := make([]Peer, 0, len(s.peers))
	for _, e := range s.peers {
		out = append(out, e.peer)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *PeerSet[C]) Conns() []C {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]C, 0, len(s.peers))
	for _, e := range s.peers {
		out = append(out, e.conn)
	}
	return out
}

func (s *PeerSet[C]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Fanout calls send for every connection concurrently and returns the first
// error.
func Fanout[C any](conns []C, send func(C) error) error {
	var g errgroup.Group
	g.SetLimit(broadcastLimit)
	for _, c := range conns {
		g.Go(func() error { return send(c) })
	}
	return g.Wait()
}
