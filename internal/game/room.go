// internal/game/room.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/draw"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/sirupsen/logrus"
)

// ErrRoomClosed is returned by every Room method once the room's worker has stopped.
var ErrRoomClosed = errors.New("room is closed")

const (
	DefaultMaxPlayers = 4
	MinMaxPlayers     = 2
	MaxMaxPlayers     = 16
)

// Client is a connection the room can deliver frames to.
// Send must not block; it reports false when the frame was dropped.
type Client interface {
	Send(env protocol.Envelope) bool
	Close()
}

// Journal receives every event a room produces, in order. Record must not block.
type Journal interface {
	Record(ev models.RoomEvent)
}

// RemoveReason says why a player left a room.
type RemoveReason int

const (
	RemovedLeft RemoveReason = iota
	RemovedKicked
	RemovedExpired
)

func (r RemoveReason) String() string {
	switch r {
	case RemovedLeft:
		return "left"
	case RemovedKicked:
		return "kicked"
	case RemovedExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Hooks are called from the room's worker goroutine. They must not call back into the room synchronously.
type Hooks struct {
	OnEmpty         func(roomID string)
	OnPlayerRemoved func(roomID, playerID string, reason RemoveReason)
	OnClosed        func(room *Room)
}

// Options configures a new room. Zero values get defaults.
type Options struct {
	Name         string
	PasswordHash string
	Catalog      *deck.Catalog
	Policy       WildCardPolicy
	Journal      Journal
	Rand         *rand.Rand
	Logger       logrus.FieldLogger
	Hooks        Hooks
	Now          func() time.Time
	InboxSize    int
}

// access is the part of a room readable without going through the worker.
type access struct {
	private      bool
	passwordHash string
}

type member struct {
	player *models.Player
	client Client
}

// Room owns one room's authoritative state. All state below the mutable marker is touched only by the
// worker goroutine started in NewRoom; other goroutines reach it through the inbox.
type Room struct {
	ID string

	log     logrus.FieldLogger
	inbox   chan func()
	done    chan struct{}
	cancel  context.CancelFunc
	closed  atomic.Bool
	access  atomic.Pointer[access]
	catalog *deck.Catalog
	policy  WildCardPolicy
	journal Journal
	hooks   Hooks
	now     func() time.Time

	// mutable, worker only
	created      int64
	settings     roomSettings
	ownerID      string
	members      []*member
	watchers     map[Client]struct{}
	phase        models.GamePhase
	currentTurn  int
	activeWild   *card.WildCard
	retiredWilds []*card.WildCard
	pile         *draw.Pile
	seq          uint64
	closing      bool
	emptyNotice  bool
}

// NewRoom creates a room in the Lobby phase and starts its worker. The worker stops when ctx is
// cancelled, Close is called, or the room faults.
func NewRoom(ctx context.Context, id string, opts Options) *Room {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Policy == nil {
		opts.Policy = ShuffledWildCards{}
	}
	if opts.Rand == nil {
		opts.Rand = draw.NewRand(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.Name == "" {
		opts.Name = randomRoomName()
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Room{
		ID:       id,
		log:      opts.Logger.WithField("room", id),
		inbox:    make(chan func(), opts.InboxSize),
		done:     make(chan struct{}),
		cancel:   cancel,
		catalog:  opts.Catalog,
		policy:   opts.Policy,
		journal:  opts.Journal,
		hooks:    opts.Hooks,
		now:      opts.Now,
		created:  opts.Now().UnixMilli(),
		watchers: make(map[Client]struct{}),
		pile:     draw.NewPile(opts.Rand),
		phase:    models.GamePhaseLobby,
		settings: roomSettings{
			name:       opts.Name,
			maxPlayers: DefaultMaxPlayers,
			playMode:   models.PlayModePlayersOnly,
		},
	}
	r.setAccess(opts.PasswordHash)

	go r.loop(ctx)
	return r
}

func (r *Room) loop(ctx context.Context) {
	defer r.finish()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.inbox:
			if !r.run(op) {
				return
			}
		}
	}
}

// run applies one operation and reports whether the worker should keep going.
// A panic or a broken invariant is a fault in this room only.
func (r *Room) run(op func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", p).Error("Room worker fault, closing room")
			ok = false
		}
	}()

	op()
	if err := r.checkInvariants(); err != nil {
		r.log.WithError(err).Error("Room invariant violated, closing room")
		return false
	}
	return !r.closing
}

func (r *Room) finish() {
	r.closed.Store(true)
	close(r.done)
	r.cancel()

	for _, m := range r.members {
		if m.client != nil {
			m.client.Close()
			delete(r.watchers, m.client)
		}
	}
	for c := range r.watchers {
		c.Close()
	}
	r.log.Info("Room closed")

	if r.hooks.OnClosed != nil {
		r.hooks.OnClosed(r)
	}
}

// do runs fn on the worker and waits for it. fn's effects are lost if the room faults while running it.
// ctx only bounds the wait for an inbox slot: once fn is queued it will run, so do waits for the
// outcome and never reports a cancellation for an op that took effect.
func (r *Room) do(ctx context.Context, fn func()) error {
	var completed bool
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
		completed = true
	}

	select {
	case r.inbox <- op:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		if !completed {
			return ErrRoomClosed
		}
		return nil
	case <-r.done:
		// the worker may have stopped right after running op
		select {
		case <-finished:
			if completed {
				return nil
			}
		default:
		}
		return ErrRoomClosed
	}
}

// Close stops the worker and closes every attached connection.
func (r *Room) Close() {
	r.cancel()
}

// Done is closed once the worker has stopped.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) Closed() bool {
	return r.closed.Load()
}

// Apply submits one client intent on behalf of playerID and waits until the room has processed it.
// A rejected intent is reported to client as a ServerError and also returned.
func (r *Room) Apply(ctx context.Context, playerID string, client Client, msg protocol.ClientMessage) error {
	var err error
	if doErr := r.do(ctx, func() {
		err = r.handle(playerID, client, msg)
		if err != nil {
			r.reject(client, playerID, msg.ClientType(), err)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Reject reports err to client with the room's current snapshot, without touching room state.
func (r *Room) Reject(ctx context.Context, client Client, err error) error {
	return r.do(ctx, func() {
		r.reject(client, "", "", err)
	})
}

func (r *Room) reject(client Client, playerID, msgType string, err error) {
	r.log.WithFields(logrus.Fields{
		"player": playerID,
		"type":   msgType,
		"kind":   protocol.KindOf(err).String(),
	}).Infof("Rejected intent: %v", err)
	r.reply(client, protocol.ToServerError(err))
}

// Watch registers a connection that has not joined yet, so the room is not reaped under it.
func (r *Room) Watch(ctx context.Context, client Client) error {
	return r.do(ctx, func() {
		r.watchers[client] = struct{}{}
		r.emptyNotice = false
	})
}

// Unwatch forgets a connection that went away.
func (r *Room) Unwatch(ctx context.Context, client Client) error {
	return r.do(ctx, func() {
		delete(r.watchers, client)
		r.checkEmpty()
	})
}

// Attach binds a new connection to an existing player, replacing and closing any previous one.
// The connection receives an ack and a resync.
func (r *Room) Attach(ctx context.Context, playerID, token string, client Client) error {
	var err error
	if doErr := r.do(ctx, func() {
		_, m := r.member(playerID)
		if m == nil {
			err = protocol.Errorf(protocol.KindNotFound, "player %s is not in this room", playerID)
			return
		}
		if m.client != nil && m.client != client {
			old := m.client
			delete(r.watchers, old)
			old.Close()
		}
		m.client = client
		m.player.Connected = true
		r.watchers[client] = struct{}{}
		r.emptyNotice = false

		r.log.WithField("player", playerID).Info("Player reattached")
		r.reply(client, &protocol.ServerAck{ID: playerID, Token: token})
		r.reply(client, r.resyncMessage())
	}); doErr != nil {
		return doErr
	}
	return err
}

// Detach marks playerID disconnected if client is still its current connection. It reports whether
// the player was detached, which is when a reconnect grace period should begin.
func (r *Room) Detach(ctx context.Context, playerID string, client Client) (bool, error) {
	var detached bool
	err := r.do(ctx, func() {
		delete(r.watchers, client)
		if _, m := r.member(playerID); m != nil && m.client == client {
			m.client = nil
			m.player.Connected = false
			detached = true
			r.log.WithField("player", playerID).Info("Player disconnected")
		}
		r.checkEmpty()
	})
	return detached, err
}

// Expire removes playerID if it is still disconnected. It reports whether the player was removed.
func (r *Room) Expire(ctx context.Context, playerID string) (bool, error) {
	var removed bool
	err := r.do(ctx, func() {
		idx, m := r.member(playerID)
		if m == nil || m.client != nil {
			return
		}
		r.removeMember(idx, RemovedExpired)
		removed = true
	})
	return removed, err
}

// Snapshot returns the room's current state.
func (r *Room) Snapshot(ctx context.Context) (*models.Room, error) {
	var snap *models.Room
	err := r.do(ctx, func() {
		snap = r.snapshot()
	})
	return snap, err
}

// IsOwner reports whether playerID currently owns the room.
func (r *Room) IsOwner(ctx context.Context, playerID string) (bool, error) {
	var owner bool
	err := r.do(ctx, func() {
		owner = playerID != "" && r.ownerID == playerID
	})
	return owner, err
}

// closeIfIdle stops the room if nobody is in it or connected to it.
func (r *Room) closeIfIdle(ctx context.Context) (bool, error) {
	var idle bool
	err := r.do(ctx, func() {
		idle = r.idle()
		r.closing = idle
	})
	return idle, err
}

// IsPrivate reports whether joining requires a password. Safe to call from any goroutine.
func (r *Room) IsPrivate() bool {
	return r.access.Load().private
}

// CheckPassword compares password against the room's hash. Public rooms accept anything.
// Hashing runs on the caller's goroutine, never on the room worker.
func (r *Room) CheckPassword(password string) (bool, error) {
	a := r.access.Load()
	if !a.private {
		return true, nil
	}
	ok, err := auth.ComparePasswordAndHash(password, a.passwordHash)
	if err != nil {
		return false, fmt.Errorf("room %s: %w", r.ID, err)
	}
	return ok, nil
}

func (r *Room) setAccess(passwordHash string) {
	r.access.Store(&access{private: passwordHash != "", passwordHash: passwordHash})
}

func (r *Room) member(playerID string) (int, *member) {
	for i, m := range r.members {
		if m.player.ID == playerID {
			return i, m
		}
	}
	return -1, nil
}

func (r *Room) idle() bool {
	return len(r.members) == 0 && len(r.watchers) == 0
}

func (r *Room) checkEmpty() {
	if !r.idle() || r.emptyNotice {
		return
	}
	r.emptyNotice = true
	r.log.Debug("Room is empty")
	if r.hooks.OnEmpty != nil {
		r.hooks.OnEmpty(r.ID)
	}
}

// journaled reports whether msg may leave the process. Errors are per-sender noise and acks carry
// the reconnect token.
func journaled(msg protocol.ServerMessage) bool {
	switch msg.(type) {
	case *protocol.ServerError, *protocol.ServerAck:
		return false
	}
	return true
}

// next stamps msg with the next sequence number and a snapshot, and journals it.
func (r *Room) next(actorID string, msg protocol.ServerMessage) protocol.Envelope {
	r.seq++
	env := protocol.Envelope{Seq: r.seq, Room: r.snapshot(), Message: msg}

	if r.journal != nil && journaled(msg) {
		r.journal.Record(models.RoomEvent{
			RoomID:    r.ID,
			Seq:       env.Seq,
			ActorID:   actorID,
			Type:      msg.ServerType(),
			Payload:   msg,
			Timestamp: r.now().UnixMilli(),
		})
	}
	return env
}

func (r *Room) deliver(c Client, env protocol.Envelope) {
	if c == nil {
		return
	}
	if !c.Send(env) {
		r.log.WithField("type", env.Type()).Warn("Outbound queue full, dropped frame")
	}
}

// broadcast sends msg to every connected member.
func (r *Room) broadcast(actorID string, msg protocol.ServerMessage) {
	env := r.next(actorID, msg)
	for _, m := range r.members {
		r.deliver(m.client, env)
	}
}

// narrowcast sends msg to the listed members only.
func (r *Room) narrowcast(actorID string, msg protocol.ServerMessage, playerIDs ...string) {
	env := r.next(actorID, msg)
	for _, id := range playerIDs {
		if _, m := r.member(id); m != nil {
			r.deliver(m.client, env)
		}
	}
}

// reply sends msg to a single connection, joined or not.
func (r *Room) reply(c Client, msg protocol.ServerMessage) {
	r.deliver(c, r.next("", msg))
}
