// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/calico32/cardgame/internal/game"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrRoomGone is returned when a resume targets a room that no longer exists.
var ErrRoomGone = errors.New("room no longer exists")

// ErrSeatGone is returned when a resume targets a player that has left or expired.
var ErrSeatGone = errors.New("player is no longer in the room")

// Config wires a Manager. Store configures the RoomStore the manager owns.
type Config struct {
	Store  game.StoreConfig
	Tokens *auth.Tokens
	Grace  time.Duration // reconnect grace window
	Logger logrus.FieldLogger

	// HashPassword defaults to auth.HashPassword.
	HashPassword func(password string) (string, error)
}

type seat struct {
	room   string
	player string
}

// Manager binds connections to room seats and keeps seats alive across short disconnects.
type Manager struct {
	rooms  *game.RoomStore
	tokens *auth.Tokens
	grace  time.Duration
	log    logrus.FieldLogger
	hash   func(string) (string, error)

	mu     sync.Mutex
	seats  map[seat]*Session
	timers map[seat]*time.Timer
}

// NewManager creates the manager and its room store.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 30 * time.Second
	}
	if cfg.HashPassword == nil {
		cfg.HashPassword = auth.HashPassword
	}
	m := &Manager{
		tokens: cfg.Tokens,
		grace:  cfg.Grace,
		log:    cfg.Logger,
		hash:   cfg.HashPassword,
		seats:  make(map[seat]*Session),
		timers: make(map[seat]*time.Timer),
	}
	storeCfg := cfg.Store
	if storeCfg.Logger == nil {
		storeCfg.Logger = cfg.Logger
	}
	storeCfg.PlayerRemoved = m.playerRemoved
	m.rooms = game.NewRoomStore(storeCfg)
	return m
}

// Rooms returns the room registry.
func (m *Manager) Rooms() *game.RoomStore {
	return m.rooms
}

// Connect registers a fresh connection with room. It is not bound to a player until it joins.
func (m *Manager) Connect(ctx context.Context, room *game.Room, client game.Client) (*Session, error) {
	s := newSession(room.ID, client)
	if err := room.Watch(ctx, client); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"room": room.ID, "session": s.ID}).Debug("Session connected")
	return s, nil
}

// Resume binds a connection to the seat named by a reconnect token. The connection receives an ack
// and a resync; the player's hand, score and ownership are unchanged.
func (m *Manager) Resume(ctx context.Context, roomID, token string, client game.Client) (*Session, error) {
	tokRoom, playerID, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if tokRoom != roomID {
		return nil, fmt.Errorf("%w: issued for another room", auth.ErrInvalidToken)
	}
	room, ok := m.rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomGone
	}

	// the grace timer keeps running until the attach lands; an Expire racing it is a no-op on an
	// attached player, and an Attach after Expire finds no seat
	s := newSession(roomID, client)
	if err := room.Attach(ctx, playerID, token, client); err != nil {
		if protocol.KindOf(err) == protocol.KindNotFound {
			return nil, ErrSeatGone
		}
		return nil, err
	}

	key := seat{room: roomID, player: playerID}
	m.mu.Lock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
	s.bind(playerID)
	m.seats[key] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"room": roomID, "player": playerID, "session": s.ID}).Info("Session resumed")
	return s, nil
}

// Handle decodes one inbound frame and routes it to the session's room.
// Rejections are delivered to the session's connection; only room-level failures are returned.
func (m *Manager) Handle(ctx context.Context, s *Session, data []byte) error {
	room, ok := m.rooms.Get(s.RoomID)
	if !ok {
		return game.ErrRoomClosed
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		return m.reject(ctx, room, s, err)
	}

	playerID, kicked := s.state()
	join, isJoin := msg.(*protocol.Join)
	switch {
	case isJoin && playerID == "":
		return m.join(ctx, room, s, join)
	case playerID == "" && kicked:
		return m.reject(ctx, room, s, protocol.Errorf(protocol.KindAuthorization, "you were kicked from this room"))
	case playerID == "":
		return m.reject(ctx, room, s, protocol.Errorf(protocol.KindAuthorization, "join the room first"))
	}

	switch msg := msg.(type) {
	case *protocol.Ack:
		s.ack(msg.Seq)
		return nil
	case *protocol.ChangeDetails:
		if msg.Password != nil && *msg.Password != "" {
			// hashing is slow and memory hungry: owners only, and never on the room worker
			owner, err := room.IsOwner(ctx, playerID)
			if err != nil {
				return err
			}
			if !owner {
				return m.reject(ctx, room, s, protocol.Errorf(protocol.KindAuthorization, "only the owner can change room details"))
			}
			hash, err := m.hash(*msg.Password)
			if err != nil {
				m.log.WithError(err).Error("Failed to hash room password")
				return m.reject(ctx, room, s, protocol.Errorf(protocol.KindUnknown, "could not set password"))
			}
			msg.PasswordHash = hash
		}
	}
	return m.apply(ctx, room, s, playerID, msg)
}

func (m *Manager) join(ctx context.Context, room *game.Room, s *Session, msg *protocol.Join) error {
	playerID := uuid.NewString()
	token, err := m.tokens.Issue(room.ID, playerID)
	if err != nil {
		m.log.WithError(err).Error("Failed to issue reconnect token")
		return m.reject(ctx, room, s, protocol.Errorf(protocol.KindUnknown, "could not join"))
	}
	msg.Token = token

	// bound before the room sees the join so hooks fired by the room can find the session
	key := seat{room: room.ID, player: playerID}
	m.mu.Lock()
	s.bind(playerID)
	m.seats[key] = s
	m.mu.Unlock()

	if err := m.apply(ctx, room, s, playerID, msg); err != nil {
		m.unbind(key, s)
		return err
	}
	return nil
}

// apply submits msg. Rejections already reached the client, so only room failures are returned.
func (m *Manager) apply(ctx context.Context, room *game.Room, s *Session, playerID string, msg protocol.ClientMessage) error {
	err := room.Apply(ctx, playerID, s.client, msg)
	var perr *protocol.Error
	if errors.As(err, &perr) {
		if _, isJoin := msg.(*protocol.Join); isJoin {
			m.unbind(seat{room: room.ID, player: playerID}, s)
		}
		return nil
	}
	return err
}

func (m *Manager) reject(ctx context.Context, room *game.Room, s *Session, err error) error {
	return room.Reject(ctx, s.client, err)
}

func (m *Manager) unbind(key seat, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seats[key] == s {
		delete(m.seats, key)
	}
	s.unbind(false)
}

// Disconnect is called once a connection's read pump has stopped. A bound player keeps its seat
// for the grace window; an unbound connection is simply forgotten.
func (m *Manager) Disconnect(ctx context.Context, s *Session) {
	room, ok := m.rooms.Get(s.RoomID)
	if !ok {
		return
	}
	playerID, _ := s.state()
	log := m.log.WithFields(logrus.Fields{"room": s.RoomID, "player": playerID, "session": s.ID})

	if playerID == "" {
		if err := room.Unwatch(ctx, s.client); err != nil {
			log.WithError(err).Debug("Unwatch after disconnect failed")
		}
		return
	}

	detached, err := room.Detach(ctx, playerID, s.client)
	if err != nil {
		log.WithError(err).Debug("Detach after disconnect failed")
		return
	}
	if !detached {
		// replaced by a newer connection
		return
	}

	key := seat{room: s.RoomID, player: playerID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seats[key] == s {
		delete(m.seats, key)
	}
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.grace, func() { m.expire(key) })
	log.WithField("grace", m.grace).Info("Player disconnected, holding seat")
}

func (m *Manager) expire(key seat) {
	m.mu.Lock()
	delete(m.timers, key)
	m.mu.Unlock()

	room, ok := m.rooms.Get(key.room)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	removed, err := room.Expire(ctx, key.player)
	if err != nil {
		m.log.WithError(err).WithField("room", key.room).Warn("Failed to expire player")
		return
	}
	if removed {
		m.log.WithFields(logrus.Fields{"room": key.room, "player": key.player}).Info("Reconnect grace expired")
	}
}

// playerRemoved runs on the room worker. It must not call back into the room.
func (m *Manager) playerRemoved(roomID, playerID string, reason game.RemoveReason) {
	key := seat{room: roomID, player: playerID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
	if s, ok := m.seats[key]; ok {
		delete(m.seats, key)
		s.unbind(reason == game.RemovedKicked)
	}
}

// Pending reports whether a grace timer is running for the seat.
func (m *Manager) Pending(roomID, playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[seat{room: roomID, player: playerID}]
	return ok
}

// Shutdown stops every grace timer and closes all rooms.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for key, t := range m.timers {
		t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()
	return m.rooms.Shutdown(ctx)
}
