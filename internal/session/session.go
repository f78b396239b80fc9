// internal/session/session.go
package session

import (
	"sync"

	"github.com/calico32/cardgame/internal/game"
	"github.com/google/uuid"
)

// Session is one live connection's view of its room membership.
type Session struct {
	ID     string
	RoomID string
	client game.Client

	mu       sync.Mutex
	playerID string
	kicked   bool
	lastAck  uint64
}

func newSession(roomID string, client game.Client) *Session {
	return &Session{ID: uuid.NewString(), RoomID: roomID, client: client}
}

// PlayerID is the bound player, or "" before a join.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// LastAck is the highest seq the client has acknowledged.
func (s *Session) LastAck() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAck
}

func (s *Session) state() (playerID string, kicked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID, s.kicked
}

func (s *Session) bind(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = playerID
	s.kicked = false
}

func (s *Session) unbind(kicked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = ""
	s.kicked = s.kicked || kicked
}

func (s *Session) ack(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastAck {
		s.lastAck = seq
	}
}
