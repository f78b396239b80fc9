package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/calico32/cardgame/internal/game"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	closed bool
}

func (c *fakeClient) Send(env protocol.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, env)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) last() protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return protocol.Envelope{}
	}
	return c.frames[len(c.frames)-1]
}

func (c *fakeClient) find(typ string) (protocol.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f.Type() == typ {
			return f, true
		}
	}
	return protocol.Envelope{}, false
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestManager(t *testing.T, grace time.Duration) *Manager {
	t.Helper()
	return newTestManagerWith(t, Config{Grace: grace})
}

// newTestManagerWith fills in tokens, a null logger and a cheap hasher where cfg leaves them unset.
func newTestManagerWith(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Tokens == nil {
		tokens, err := auth.NewTokens(0)
		require.NoError(t, err)
		cfg.Tokens = tokens
	}
	if cfg.Logger == nil {
		cfg.Logger, _ = test.NewNullLogger()
	}
	if cfg.HashPassword == nil {
		cfg.HashPassword = cheapHash
	}
	m := NewManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func cheapHash(pw string) (string, error) {
	return auth.CreateHash(pw, &auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
}

// connectAndJoin opens a session in roomID and joins it, returning the session, its client and the ack.
func connectAndJoin(t *testing.T, m *Manager, roomID, name string) (*Session, *fakeClient, *protocol.ServerAck) {
	t.Helper()
	ctx := context.Background()
	room, _, err := m.Rooms().Ensure(roomID, "")
	require.NoError(t, err)

	c := &fakeClient{}
	s, err := m.Connect(ctx, room, c)
	require.NoError(t, err)
	require.NoError(t, m.Handle(ctx, s, []byte(`{"type":"join","name":"`+name+`"}`)))

	env, ok := c.find("ack")
	require.True(t, ok, "join is acknowledged")
	return s, c, env.Message.(*protocol.ServerAck)
}

func lastError(t *testing.T, c *fakeClient) *protocol.ServerError {
	t.Helper()
	env := c.last()
	require.Equal(t, "error", env.Type())
	return env.Message.(*protocol.ServerError)
}

func TestUnboundSessionMustJoinFirst(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	room, _, err := m.Rooms().Ensure("room1", "")
	require.NoError(t, err)

	c := &fakeClient{}
	s, err := m.Connect(ctx, room, c)
	require.NoError(t, err)

	require.NoError(t, m.Handle(ctx, s, []byte(`{"type":"draw"}`)))
	se := lastError(t, c)
	assert.Equal(t, "authorization", se.Kind)
	assert.Empty(t, s.PlayerID())
}

func TestJoinBindsSessionAndIssuesToken(t *testing.T) {
	m := newTestManager(t, time.Minute)
	s, c, ack := connectAndJoin(t, m, "room1", "Ada")

	assert.NotEmpty(t, ack.ID)
	assert.NotEmpty(t, ack.Token)
	assert.Equal(t, ack.ID, s.PlayerID())

	env, ok := c.find("join")
	require.True(t, ok)
	assert.Equal(t, "room1", env.Room.ID)
	assert.Equal(t, ack.ID, env.Room.OwnerID)
}

func TestMalformedFrameRejectedOnlyToSender(t *testing.T) {
	m := newTestManager(t, time.Minute)
	s1, c1, _ := connectAndJoin(t, m, "room1", "A")
	_, c2, _ := connectAndJoin(t, m, "room1", "B")
	before := c2.count()

	require.NoError(t, m.Handle(context.Background(), s1, []byte(`{"type":"teleport"}`)))
	assert.Equal(t, "protocol", lastError(t, c1).Kind)
	assert.Equal(t, before, c2.count())
}

func TestAckRecordsSeq(t *testing.T) {
	m := newTestManager(t, time.Minute)
	s, _, _ := connectAndJoin(t, m, "room1", "A")

	require.NoError(t, m.Handle(context.Background(), s, []byte(`{"type":"ack","seq":9}`)))
	require.NoError(t, m.Handle(context.Background(), s, []byte(`{"type":"ack","seq":4}`)))
	assert.Equal(t, uint64(9), s.LastAck())
}

func TestResumeWithinGrace(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	s, _, ack := connectAndJoin(t, m, "room1", "Owner")
	connectAndJoin(t, m, "room1", "Guest")

	m.Disconnect(ctx, s)
	assert.True(t, m.Pending("room1", ack.ID))

	room, ok := m.Rooms().Get("room1")
	require.True(t, ok)
	snap, err := room.Snapshot(ctx)
	require.NoError(t, err)
	p, _ := snap.Player(ack.ID)
	assert.False(t, p.Connected)
	assert.Equal(t, ack.ID, snap.OwnerID)

	c := &fakeClient{}
	resumed, err := m.Resume(ctx, "room1", ack.Token, c)
	require.NoError(t, err)
	assert.Equal(t, ack.ID, resumed.PlayerID())
	assert.False(t, m.Pending("room1", ack.ID))

	_, ok = c.find("ack")
	assert.True(t, ok)
	env, ok := c.find("resync")
	require.True(t, ok)
	assert.Equal(t, ack.ID, env.Room.OwnerID, "ownership survives the reconnect")
	p, _ = env.Room.Player(ack.ID)
	assert.True(t, p.Connected)
}

func TestGraceExpiryRemovesPlayer(t *testing.T) {
	m := newTestManager(t, 20*time.Millisecond)
	ctx := context.Background()
	s, _, ack := connectAndJoin(t, m, "room1", "Owner")
	_, c2, ack2 := connectAndJoin(t, m, "room1", "Guest")

	m.Disconnect(ctx, s)
	require.Eventually(t, func() bool {
		env, ok := c2.find("leave")
		return ok && env.Message.(*protocol.ServerLeave).ID == ack.ID
	}, time.Second, 5*time.Millisecond)

	room, _ := m.Rooms().Get("room1")
	snap, err := room.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)
	assert.Equal(t, ack2.ID, snap.OwnerID)

	_, err = m.Resume(ctx, "room1", ack.Token, &fakeClient{})
	assert.ErrorIs(t, err, ErrSeatGone)
}

func TestResumeRejections(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	_, _, ack := connectAndJoin(t, m, "room1", "A")

	_, err := m.Resume(ctx, "room2", ack.Token, &fakeClient{})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = m.Resume(ctx, "room1", "not-a-token", &fakeClient{})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	other := newTestManager(t, time.Minute)
	_, _, foreign := connectAndJoin(t, other, "room9", "B")
	_, err = m.Resume(ctx, "room9", foreign.Token, &fakeClient{})
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "tokens are bound to the issuing process key")
}

func TestResumeRoomGone(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	_, _, ack := connectAndJoin(t, m, "room1", "A")

	room, _ := m.Rooms().Get("room1")
	room.Close()
	<-room.Done()

	_, err := m.Resume(ctx, "room1", ack.Token, &fakeClient{})
	assert.ErrorIs(t, err, ErrRoomGone)
}

func TestSecondResumeReplacesFirst(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	s, _, ack := connectAndJoin(t, m, "room1", "A")
	m.Disconnect(ctx, s)

	first := &fakeClient{}
	s1, err := m.Resume(ctx, "room1", ack.Token, first)
	require.NoError(t, err)
	second := &fakeClient{}
	_, err = m.Resume(ctx, "room1", ack.Token, second)
	require.NoError(t, err)
	assert.True(t, first.isClosed())

	m.Disconnect(ctx, s1)
	assert.False(t, m.Pending("room1", ack.ID), "a replaced connection does not start a grace timer")
}

func TestKickedSessionIsToldSo(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	owner, _, _ := connectAndJoin(t, m, "room1", "Owner")
	guest, gc, gack := connectAndJoin(t, m, "room1", "Guest")

	require.NoError(t, m.Handle(ctx, owner, []byte(`{"type":"kick","id":"`+gack.ID+`"}`)))
	_, ok := gc.find("kick")
	require.True(t, ok)
	assert.Empty(t, guest.PlayerID())

	require.NoError(t, m.Handle(ctx, guest, []byte(`{"type":"chat","message":"hey"}`)))
	se := lastError(t, gc)
	assert.Equal(t, "authorization", se.Kind)
	assert.Equal(t, "you were kicked from this room", se.Message)

	require.NoError(t, m.Handle(ctx, guest, []byte(`{"type":"join","name":"Back"}`)))
	assert.NotEmpty(t, guest.PlayerID())
	assert.NotEqual(t, gack.ID, guest.PlayerID())
}

func TestRejectedJoinLeavesSessionUnbound(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	owner, _, _ := connectAndJoin(t, m, "room1", "Owner")
	connectAndJoin(t, m, "room1", "Guest")
	require.NoError(t, m.Handle(ctx, owner, []byte(`{"type":"change_details","maxPlayers":2}`)))

	room, _ := m.Rooms().Get("room1")
	c := &fakeClient{}
	s, err := m.Connect(ctx, room, c)
	require.NoError(t, err)
	require.NoError(t, m.Handle(ctx, s, []byte(`{"type":"join","name":"Late"}`)))
	assert.Equal(t, "capacity", lastError(t, c).Kind)
	assert.Empty(t, s.PlayerID())
}

func TestChangeDetailsPasswordIsHashed(t *testing.T) {
	m := newTestManager(t, time.Minute)
	ctx := context.Background()
	owner, _, _ := connectAndJoin(t, m, "room1", "Owner")

	require.NoError(t, m.Handle(ctx, owner, []byte(`{"type":"change_details","password":"s3cret"}`)))
	room, _ := m.Rooms().Get("room1")
	assert.True(t, room.IsPrivate())

	ok, err := room.CheckPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = room.CheckPassword("guess")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleOnClosedRoom(t *testing.T) {
	m := newTestManager(t, time.Minute)
	s, _, _ := connectAndJoin(t, m, "room1", "A")
	room, _ := m.Rooms().Get("room1")
	room.Close()
	<-room.Done()

	err := m.Handle(context.Background(), s, []byte(`{"type":"draw"}`))
	assert.ErrorIs(t, err, game.ErrRoomClosed)
}

// gateJournal blocks the room worker inside the first Record after hold, until released.
type gateJournal struct {
	mu      sync.Mutex
	entered chan struct{}
	gate    chan struct{}
}

func (j *gateJournal) hold() (entered, release chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entered, j.gate = make(chan struct{}), make(chan struct{})
	return j.entered, j.gate
}

func (j *gateJournal) Record(models.RoomEvent) {
	j.mu.Lock()
	entered, gate := j.entered, j.gate
	j.entered, j.gate = nil, nil
	j.mu.Unlock()
	if gate == nil {
		return
	}
	close(entered)
	<-gate
}

// stallRoom parks roomID's worker behind a chat from s and returns the function that frees it.
func stallRoom(t *testing.T, m *Manager, j *gateJournal, s *Session) func() {
	t.Helper()
	entered, release := j.hold()
	go m.Handle(context.Background(), s, []byte(`{"type":"chat","message":"hold on"}`))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("room worker never reached the journal")
	}
	return func() { close(release) }
}

func playerCount(t *testing.T, room *game.Room) int {
	t.Helper()
	snap, err := room.Snapshot(context.Background())
	require.NoError(t, err)
	return len(snap.Players)
}

func TestCancelledJoinStillExpiresAfterDisconnect(t *testing.T) {
	j := &gateJournal{}
	m := newTestManagerWith(t, Config{Grace: 30 * time.Millisecond, Store: game.StoreConfig{Journal: j}})
	ctx := context.Background()
	owner, _, _ := connectAndJoin(t, m, "room1", "Owner")
	room, _ := m.Rooms().Get("room1")

	c := &fakeClient{}
	s, err := m.Connect(ctx, room, c)
	require.NoError(t, err)

	release := stallRoom(t, m, j, owner)
	joinCtx, cancel := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		result <- m.Handle(joinCtx, s, []byte(`{"type":"join","name":"Ghost"}`))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	release()

	if err := <-result; err == nil {
		assert.NotEmpty(t, s.PlayerID(), "a join that took effect binds the session")
		_, acked := c.find("ack")
		assert.True(t, acked)
	} else {
		assert.Empty(t, s.PlayerID())
	}

	m.Disconnect(ctx, s)
	require.Eventually(t, func() bool { return playerCount(t, room) == 1 }, time.Second, 5*time.Millisecond,
		"the seat goes away like any other expired disconnect")
	assert.False(t, m.Pending("room1", s.PlayerID()))
}

func TestCancelledResumeKeepsGraceTimer(t *testing.T) {
	j := &gateJournal{}
	m := newTestManagerWith(t, Config{Grace: 50 * time.Millisecond, Store: game.StoreConfig{Journal: j}})
	ctx := context.Background()
	owner, _, _ := connectAndJoin(t, m, "room1", "Owner")
	guest, _, ack := connectAndJoin(t, m, "room1", "Guest")
	room, _ := m.Rooms().Get("room1")
	m.Disconnect(ctx, guest)
	require.True(t, m.Pending("room1", ack.ID))

	release := stallRoom(t, m, j, owner)
	resumeCtx, cancel := context.WithCancel(ctx)
	c := &fakeClient{}
	type outcome struct {
		s   *Session
		err error
	}
	result := make(chan outcome, 1)
	go func() {
		s, err := m.Resume(resumeCtx, "room1", ack.Token, c)
		result <- outcome{s, err}
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	release()

	out := <-result
	if out.err != nil {
		require.Eventually(t, func() bool { return playerCount(t, room) == 1 }, time.Second, 5*time.Millisecond,
			"a failed resume leaves the seat to expire")
		return
	}
	assert.Equal(t, ack.ID, out.s.PlayerID())
	assert.False(t, m.Pending("room1", ack.ID))
	time.Sleep(100 * time.Millisecond)
	snap, err := room.Snapshot(ctx)
	require.NoError(t, err)
	p, ok := snap.Player(ack.ID)
	require.True(t, ok, "a resumed player outlives the old grace window")
	assert.True(t, p.Connected)
}

func TestNonOwnerPasswordChangeSkipsHashing(t *testing.T) {
	var hashed atomic.Int32
	m := newTestManagerWith(t, Config{
		Grace: time.Minute,
		HashPassword: func(pw string) (string, error) {
			hashed.Add(1)
			return cheapHash(pw)
		},
	})
	ctx := context.Background()
	connectAndJoin(t, m, "room1", "Owner")
	guest, c, _ := connectAndJoin(t, m, "room1", "Guest")

	require.NoError(t, m.Handle(ctx, guest, []byte(`{"type":"change_details","password":"mine now"}`)))
	assert.Equal(t, "authorization", lastError(t, c).Kind)
	assert.Zero(t, hashed.Load())

	room, _ := m.Rooms().Get("room1")
	assert.False(t, room.IsPrivate())
}
