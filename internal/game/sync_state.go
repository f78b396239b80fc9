// internal/game/sync_state.go
package game

import (
	"fmt"

	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
)

// snapshot copies the room's state into a value that can be shared with connection goroutines.
func (r *Room) snapshot() *models.Room {
	players := make([]models.Player, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, m.player.Clone())
	}

	return &models.Room{
		ID:             r.ID,
		Timestamp:      r.created,
		Name:           r.settings.name,
		Description:    r.settings.description,
		MaxPlayers:     r.settings.maxPlayers,
		OwnerID:        r.ownerID,
		Players:        players,
		Decks:          summaries(r.settings.decks),
		PlayMode:       r.settings.playMode,
		HubDeviceID:    r.settings.hubDeviceID,
		CurrentTurn:    r.currentTurn,
		GamePhase:      r.phase,
		ActiveWildCard: r.activeWild,
		DrawPileSize:   r.pile.Len(),
		TargetScore:    r.settings.targetScore,
		Private:        r.access.Load().private,
	}
}

func summaries(decks []*deck.Deck) []deck.Summary {
	out := make([]deck.Summary, 0, len(decks))
	for _, d := range decks {
		out = append(out, d.Summary())
	}
	return out
}

// resyncMessage lists every player's top card; players with an empty hand map to null.
func (r *Room) resyncMessage() *protocol.ServerResync {
	top := make(map[string]*card.Card, len(r.members))
	for _, m := range r.members {
		top[m.player.ID] = m.player.Top()
	}
	return &protocol.ServerResync{TopCards: top}
}

func (r *Room) detailsMessage() *protocol.ServerChangeDetails {
	return &protocol.ServerChangeDetails{
		Name:        r.settings.name,
		Description: r.settings.description,
		MaxPlayers:  r.settings.maxPlayers,
		Decks:       summaries(r.settings.decks),
		PlayMode:    r.settings.playMode,
		HubDeviceID: r.settings.hubDeviceID,
		TargetScore: r.settings.targetScore,
		Private:     r.access.Load().private,
	}
}

// checkInvariants runs after every operation. A violation faults the room.
func (r *Room) checkInvariants() error {
	n := len(r.members)
	if n > r.settings.maxPlayers {
		return fmt.Errorf("%d players exceed max %d", n, r.settings.maxPlayers)
	}
	if n == 0 {
		if r.ownerID != "" {
			return fmt.Errorf("empty room has owner %s", r.ownerID)
		}
	} else if _, owner := r.member(r.ownerID); owner == nil {
		return fmt.Errorf("owner %q is not a member", r.ownerID)
	}

	seen := make(map[string]bool, n)
	for _, m := range r.members {
		if seen[m.player.ID] {
			return fmt.Errorf("duplicate player %s", m.player.ID)
		}
		seen[m.player.ID] = true
	}

	if r.phase == models.GamePhasePlaying {
		if n < 2 {
			return fmt.Errorf("playing with %d players", n)
		}
		if r.currentTurn < 0 || r.currentTurn >= n {
			return fmt.Errorf("current turn %d out of range for %d players", r.currentTurn, n)
		}
	}
	if r.phase != models.GamePhasePlaying && r.pile.Len() != 0 {
		return fmt.Errorf("draw pile holds %d cards outside play", r.pile.Len())
	}
	return nil
}
