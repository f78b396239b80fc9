// internal/game/room_store.go
package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/draw"
	"github.com/sirupsen/logrus"
)

// StoreConfig is shared by every room a RoomStore creates.
type StoreConfig struct {
	Catalog   *deck.Catalog
	Policy    WildCardPolicy
	Journal   Journal
	ReapGrace time.Duration // how long an idle room survives
	Seed      int64         // 0 seeds each room from the clock
	Logger    logrus.FieldLogger

	// PlayerRemoved is forwarded from every room's hooks.
	PlayerRemoved func(roomID, playerID string, reason RemoveReason)
}

// RoomStore keeps the live rooms in memory, keyed by room ID.
// Rooms that stay idle for ReapGrace are closed and dropped.
type RoomStore struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	reapers map[string]*time.Timer

	cfg    StoreConfig
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
	seeds  atomic.Int64
}

// NewRoomStore returns an empty store. Rooms live until they are reaped or Shutdown is called.
func NewRoomStore(cfg StoreConfig) *RoomStore {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Policy == nil {
		cfg.Policy = ShuffledWildCards{}
	}
	if cfg.ReapGrace <= 0 {
		cfg.ReapGrace = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomStore{
		rooms:   make(map[string]*Room),
		reapers: make(map[string]*time.Timer),
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *RoomStore) newRoom(id, name, passwordHash string) *Room {
	rng := draw.NewRand(0)
	if s.cfg.Seed != 0 {
		rng = draw.NewRand(s.cfg.Seed + s.seeds.Add(1) - 1)
	}
	return NewRoom(s.ctx, id, Options{
		Name:         name,
		PasswordHash: passwordHash,
		Catalog:      s.cfg.Catalog,
		Policy:       s.cfg.Policy,
		Journal:      s.cfg.Journal,
		Rand:         rng,
		Logger:       s.cfg.Logger,
		Hooks: Hooks{
			OnEmpty:         s.scheduleReap,
			OnPlayerRemoved: s.cfg.PlayerRemoved,
			OnClosed:        s.remove,
		},
	})
}

// Create opens a room under a fresh ID. An empty passwordHash makes it public.
func (s *RoomStore) Create(name, passwordHash string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, ErrRoomClosed
	}

	for attempt := 0; attempt < 8; attempt++ {
		id := NewRoomID()
		if existing, taken := s.rooms[id]; taken && !existing.Closed() {
			continue
		}
		r := s.newRoom(id, name, passwordHash)
		s.rooms[id] = r
		s.armReaper(id)
		s.log.WithFields(logrus.Fields{"room": id, "private": passwordHash != ""}).Info("Room created")
		return r, nil
	}
	return nil, fmt.Errorf("could not allocate a room id")
}

// Ensure returns the room with the given ID, creating it if it does not exist or has closed.
// passwordHash only applies to a newly created room. created reports whether a new room was made.
func (s *RoomStore) Ensure(id, passwordHash string) (r *Room, created bool, err error) {
	if r, ok := s.Get(id); ok {
		return r, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, false, ErrRoomClosed
	}
	if existing, ok := s.rooms[id]; ok && !existing.Closed() {
		return existing, false, nil
	}
	r = s.newRoom(id, "", passwordHash)
	s.rooms[id] = r
	s.armReaper(id)
	s.log.WithFields(logrus.Fields{"room": id, "private": passwordHash != ""}).Info("Room created on connect")
	return r, true, nil
}

// Get returns a live room.
func (s *RoomStore) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok || r.Closed() {
		return nil, false
	}
	return r, true
}

// List returns the live rooms ordered by ID.
func (s *RoomStore) List() []*Room {
	s.mu.RLock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if !r.Closed() {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live public and private rooms.
func (s *RoomStore) Count() (public, private int) {
	for _, r := range s.List() {
		if r.IsPrivate() {
			private++
		} else {
			public++
		}
	}
	return public, private
}

// Shutdown closes every room and waits for their workers to stop, or for ctx to expire.
func (s *RoomStore) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	rooms := make([]*Room, 0, len(s.rooms))
	for id, r := range s.rooms {
		rooms = append(rooms, r)
		if t, ok := s.reapers[id]; ok {
			t.Stop()
			delete(s.reapers, id)
		}
	}
	s.mu.Unlock()

	for _, r := range rooms {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.log.WithField("rooms", len(rooms)).Info("Room store shut down")
	return nil
}

// scheduleReap runs on the room's worker when it becomes idle.
func (s *RoomStore) scheduleReap(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armReaper(roomID)
}

// armReaper must be called with mu held.
func (s *RoomStore) armReaper(roomID string) {
	if t, ok := s.reapers[roomID]; ok {
		t.Stop()
	}
	s.reapers[roomID] = time.AfterFunc(s.cfg.ReapGrace, func() { s.reap(roomID) })
}

func (s *RoomStore) reap(roomID string) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	delete(s.reapers, roomID)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	idle, err := r.closeIfIdle(ctx)
	if err != nil {
		return
	}
	if idle {
		s.log.WithField("room", roomID).Info("Reaping idle room")
	}
}

// remove runs on a room's worker as it stops.
func (s *RoomStore) remove(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[r.ID] != r {
		return
	}
	delete(s.rooms, r.ID)
	if t, ok := s.reapers[r.ID]; ok {
		t.Stop()
		delete(s.reapers, r.ID)
	}
}
