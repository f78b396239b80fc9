// internal/game/game.go
package game

import (
	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/sirupsen/logrus"
)

// handleStart moves Lobby -> Playing. The owner takes the first turn.
func (r *Room) handleStart(self *member) error {
	if self.player.ID != r.ownerID {
		return protocol.Errorf(protocol.KindAuthorization, "only the owner can start the game")
	}
	if r.phase != models.GamePhaseLobby {
		return protocol.Errorf(protocol.KindState, "game has already started")
	}
	if len(r.members) < 2 {
		return protocol.Errorf(protocol.KindState, "at least 2 players are needed to start")
	}
	if len(r.settings.decks) == 0 {
		return protocol.Errorf(protocol.KindState, "select at least one deck before starting")
	}

	for _, m := range r.members {
		m.player.Cards = nil
		m.player.Score = 0
	}

	var items []card.Drawable
	for _, d := range r.settings.decks {
		for _, c := range d.Cards {
			items = append(items, c)
		}
	}
	for _, w := range r.policy.PileWildCards(r.settings.decks) {
		items = append(items, w)
	}
	r.pile.Reset(items)
	r.activeWild = nil
	r.retiredWilds = nil

	ownerIdx, _ := r.member(r.ownerID)
	r.currentTurn = ownerIdx
	r.phase = models.GamePhasePlaying

	r.log.WithFields(logrus.Fields{"players": len(r.members), "pile": r.pile.Len()}).Info("Game started")
	r.broadcast(self.player.ID, &protocol.ServerStart{CurrentTurn: r.currentTurn})
	r.broadcast("", &protocol.ServerTurn{PlayerID: r.members[r.currentTurn].player.ID})
	return nil
}

// handleDraw pops the top of the pile for the current player. An empty pile is reshuffled first;
// if nothing can be returned to it the game ends instead.
func (r *Room) handleDraw(idx int, self *member) error {
	if r.phase != models.GamePhasePlaying {
		return protocol.Errorf(protocol.KindState, "game is not in progress")
	}
	if idx != r.currentTurn {
		return protocol.Errorf(protocol.KindAuthorization, "it is not your turn")
	}

	if r.pile.Len() == 0 && !r.reshuffle() {
		r.log.Info("Draw pile exhausted with nothing to reshuffle")
		r.endGame("exhausted")
		return nil
	}

	drawn, _ := r.pile.Draw()
	switch c := drawn.(type) {
	case *card.Card:
		self.player.Cards = append(self.player.Cards, c)
		r.broadcast(self.player.ID, &protocol.ServerDraw{PlayerID: self.player.ID, Card: c})

		r.currentTurn = (r.currentTurn + 1) % len(r.members)
		r.broadcast("", r.resyncMessage())
		r.broadcast("", &protocol.ServerTurn{PlayerID: r.members[r.currentTurn].player.ID})

	case *card.WildCard:
		// the same player draws again
		if r.activeWild != nil {
			r.retiredWilds = append(r.retiredWilds, r.activeWild)
		}
		r.activeWild = c
		r.broadcast(self.player.ID, &protocol.ServerWildCard{PlayerID: self.player.ID, Card: c})

	default:
		panic("draw pile holds an unknown card kind")
	}
	return nil
}

// reshuffle rebuilds the pile from every card under each player's top card and lets the policy pick
// the next wild card. It reports false, changing nothing, when there is nothing to return.
func (r *Room) reshuffle() bool {
	var returned []card.Drawable
	for _, m := range r.members {
		hand := m.player.Cards
		if len(hand) < 2 {
			continue
		}
		for _, c := range hand[:len(hand)-1] {
			returned = append(returned, c)
		}
		m.player.Cards = []*card.Card{hand[len(hand)-1]}
	}
	if len(returned) == 0 {
		return false
	}

	r.pile.Reset(returned)
	r.activeWild, r.retiredWilds = r.policy.AfterReshuffle(r.activeWild, r.retiredWilds, r.pile.Rand())

	r.log.WithField("pile", r.pile.Len()).Info("Draw pile reshuffled")
	r.broadcast("", &protocol.ServerReshuffle{DrawPileSize: r.pile.Len()})
	return true
}

// handleSend moves the sender's top card onto the recipient's hand when the two top cards match.
func (r *Room) handleSend(self *member, m *protocol.Send) error {
	if r.phase != models.GamePhasePlaying {
		return protocol.Errorf(protocol.KindState, "game is not in progress")
	}
	if m.RecipientID == self.player.ID {
		return protocol.Errorf(protocol.KindAuthorization, "you cannot send a card to yourself")
	}
	_, target := r.member(m.RecipientID)
	if target == nil {
		return protocol.Errorf(protocol.KindNotFound, "player %s not found", m.RecipientID)
	}

	top := self.player.Top()
	if top == nil {
		return protocol.Errorf(protocol.KindState, "you have no card to send")
	}
	if target.player.Top() == nil {
		return protocol.Errorf(protocol.KindState, "%s has no card", target.player.Name)
	}
	if !card.Compatible(top, target.player.Top(), r.activeWild) {
		return protocol.Errorf(protocol.KindState, "cards are not compatible")
	}

	self.player.Cards = self.player.Cards[:len(self.player.Cards)-1]
	target.player.Cards = append(target.player.Cards, top)
	target.player.Score++

	r.narrowcast(self.player.ID, &protocol.ServerSend{
		SenderID:    self.player.ID,
		RecipientID: target.player.ID,
		Card:        top,
	}, self.player.ID, target.player.ID)
	r.broadcast("", r.resyncMessage())

	if r.settings.targetScore > 0 && target.player.Score >= r.settings.targetScore {
		r.endGame("score")
	}
	return nil
}

func (r *Room) handleEnd(self *member) error {
	if self.player.ID != r.ownerID {
		return protocol.Errorf(protocol.KindAuthorization, "only the owner can end the game")
	}
	if r.phase == models.GamePhaseEnd {
		return protocol.Errorf(protocol.KindState, "game has already ended")
	}
	r.endGame("owner")
	return nil
}

// endGame moves the room to End. The winner is the highest score, earliest seat on ties.
func (r *Room) endGame(reason string) {
	r.phase = models.GamePhaseEnd
	r.pile.Clear()
	r.currentTurn = 0

	var winner *models.Player
	for _, m := range r.members {
		if winner == nil || m.player.Score > winner.Score {
			winner = m.player
		}
	}
	end := &protocol.ServerEnd{Reason: reason}
	if winner != nil {
		end.WinnerID = winner.ID
	}

	r.log.WithFields(logrus.Fields{"reason": reason, "winner": end.WinnerID}).Info("Game ended")
	r.broadcast("", end)
}
