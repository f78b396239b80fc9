// internal/game/lobby.go
package game

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/sirupsen/logrus"
)

const (
	maxNameLength = 32
	maxChatLength = 500
)

// handle dispatches one intent. It runs on the worker.
func (r *Room) handle(playerID string, client Client, msg protocol.ClientMessage) error {
	r.log.WithFields(logrus.Fields{"player": playerID, "type": msg.ClientType()}).Debug("Handling intent")

	if m, ok := msg.(*protocol.Join); ok {
		return r.handleJoin(playerID, client, m)
	}

	idx, self := r.member(playerID)
	if self == nil {
		return protocol.Errorf(protocol.KindNotFound, "you are not in this room")
	}

	switch m := msg.(type) {
	case *protocol.ChangeDetails:
		return r.handleChangeDetails(self, m)
	case *protocol.Leave:
		r.removeMember(idx, RemovedLeft)
		return nil
	case *protocol.Kick:
		return r.handleKick(self, m)
	case *protocol.Start:
		return r.handleStart(self)
	case *protocol.Draw:
		return r.handleDraw(idx, self)
	case *protocol.Send:
		return r.handleSend(self, m)
	case *protocol.Chat:
		return r.handleChat(self, m)
	case *protocol.Resync:
		r.reply(client, r.resyncMessage())
		return nil
	case *protocol.Ack:
		return nil
	case *protocol.End:
		return r.handleEnd(self)
	default:
		return protocol.Errorf(protocol.KindProtocol, "unsupported message type %q", msg.ClientType())
	}
}

// handleJoin seats a new player. Joining is open in Lobby and End; a game in progress
// can only be rejoined by resuming an existing seat.
func (r *Room) handleJoin(playerID string, client Client, m *protocol.Join) error {
	if playerID == "" {
		return protocol.Errorf(protocol.KindProtocol, "missing player id")
	}
	if _, existing := r.member(playerID); existing != nil {
		return protocol.Errorf(protocol.KindState, "you are already in this room")
	}
	if r.phase == models.GamePhasePlaying {
		return protocol.Errorf(protocol.KindState, "game already in progress")
	}
	if len(r.members) >= r.settings.maxPlayers {
		return protocol.Errorf(protocol.KindCapacity, "room is full")
	}

	name := strings.TrimSpace(m.Name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return protocol.Errorf(protocol.KindProtocol, "name must be at most %d characters", maxNameLength)
	}
	if name == "" {
		name = randomPlayerName()
	}

	p := &models.Player{
		ID:        playerID,
		Avatar:    m.Avatar,
		Name:      name,
		Cards:     nil,
		Connected: client != nil,
	}
	r.members = append(r.members, &member{player: p, client: client})
	if len(r.members) == 1 {
		r.ownerID = p.ID
	}
	if client != nil {
		r.watchers[client] = struct{}{}
	}
	r.emptyNotice = false

	r.log.WithFields(logrus.Fields{"player": p.ID, "name": p.Name}).Info("Player joined")

	r.reply(client, &protocol.ServerAck{ID: p.ID, Token: m.Token})
	r.broadcast(p.ID, &protocol.ServerJoin{ID: p.ID, Player: p.Clone()})
	r.reply(client, r.resyncMessage())
	return nil
}

func (r *Room) handleKick(self *member, m *protocol.Kick) error {
	if self.player.ID != r.ownerID {
		return protocol.Errorf(protocol.KindAuthorization, "only the owner can kick players")
	}
	if m.ID == self.player.ID {
		return protocol.Errorf(protocol.KindAuthorization, "you cannot kick yourself")
	}
	idx, target := r.member(m.ID)
	if target == nil {
		return protocol.Errorf(protocol.KindNotFound, "player %s not found", m.ID)
	}

	r.reply(target.client, &protocol.ServerKick{ID: target.player.ID})
	r.removeMember(idx, RemovedKicked)
	return nil
}

// removeMember drops the player at idx, fixing up turn order and ownership.
func (r *Room) removeMember(idx int, reason RemoveReason) {
	gone := r.members[idx]
	id := gone.player.ID
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	turnHolder := r.phase == models.GamePhasePlaying && idx == r.currentTurn
	switch {
	case len(r.members) == 0:
		r.currentTurn = 0
	case idx < r.currentTurn:
		r.currentTurn--
	case r.currentTurn >= len(r.members):
		r.currentTurn = 0
	}

	if id == r.ownerID {
		if len(r.members) > 0 {
			r.ownerID = r.members[idx%len(r.members)].player.ID
		} else {
			r.ownerID = ""
		}
	}

	r.log.WithFields(logrus.Fields{"player": id, "reason": reason.String(), "owner": r.ownerID}).Info("Player removed")

	env := r.next(id, &protocol.ServerLeave{ID: id})
	for _, m := range r.members {
		r.deliver(m.client, env)
	}
	r.deliver(gone.client, env)

	if r.hooks.OnPlayerRemoved != nil {
		r.hooks.OnPlayerRemoved(r.ID, id, reason)
	}

	if r.phase == models.GamePhasePlaying {
		if len(r.members) < 2 {
			r.endGame("players")
		} else if turnHolder {
			r.broadcast("", &protocol.ServerTurn{PlayerID: r.members[r.currentTurn].player.ID})
		}
	}
	r.checkEmpty()
}

func (r *Room) handleChat(self *member, m *protocol.Chat) error {
	text := strings.TrimSpace(m.Message)
	if text == "" {
		return protocol.Errorf(protocol.KindProtocol, "chat message is empty")
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		return protocol.Errorf(protocol.KindProtocol, "chat message must be at most %d characters", maxChatLength)
	}

	chat := &protocol.ServerChat{
		Timestamp: strconv.FormatInt(r.now().UnixMilli(), 10),
		PlayerID:  self.player.ID,
		Message:   text,
	}

	if m.Recipient == nil || *m.Recipient == "" {
		r.broadcast(self.player.ID, chat)
		return nil
	}

	_, target := r.member(*m.Recipient)
	if target == nil {
		return protocol.Errorf(protocol.KindNotFound, "player %s not found", *m.Recipient)
	}
	chat.Private = true
	chat.Recipient = target.player.ID
	if target == self {
		r.narrowcast(self.player.ID, chat, self.player.ID)
		return nil
	}
	r.narrowcast(self.player.ID, chat, self.player.ID, target.player.ID)
	return nil
}

func (r *Room) handleChangeDetails(self *member, m *protocol.ChangeDetails) error {
	if self.player.ID != r.ownerID {
		return protocol.Errorf(protocol.KindAuthorization, "only the owner can change room details")
	}

	next, err := r.settings.update(m, r.phase, len(r.members), r.catalog)
	if err != nil {
		return err
	}
	r.settings = next
	if m.Password != nil {
		r.setAccess(m.PasswordHash)
	}

	r.log.WithField("player", self.player.ID).Info("Room details changed")
	r.broadcast(self.player.ID, r.detailsMessage())
	return nil
}
