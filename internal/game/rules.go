// internal/game/rules.go
package game

import (
	"strings"
	"unicode/utf8"

	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
)

const (
	maxRoomNameLength    = 64
	maxDescriptionLength = 500
)

// roomSettings holds the owner-editable configuration of a room.
type roomSettings struct {
	name        string
	description string
	maxPlayers  int
	playMode    models.PlayMode
	hubDeviceID string
	targetScore int // 0 means no score limit
	decks       []*deck.Deck
}

// update returns the settings with every non-nil field of m applied. Either the whole change is
// valid and applied, or an error is returned and s is left untouched.
// maxPlayers, playMode, the deck selection and targetScore can only change in the lobby.
func (s roomSettings) update(m *protocol.ChangeDetails, phase models.GamePhase, playerCount int, catalog *deck.Catalog) (roomSettings, error) {
	next := s
	next.decks = append([]*deck.Deck(nil), s.decks...)

	structural := m.MaxPlayers != nil || m.PlayMode != nil || m.TargetScore != nil ||
		len(m.AddDecks) > 0 || len(m.RemoveDecks) > 0
	if structural && phase != models.GamePhaseLobby {
		return s, protocol.Errorf(protocol.KindState, "game settings can only be changed in the lobby")
	}

	if m.Name != nil {
		name := strings.TrimSpace(*m.Name)
		if n := utf8.RuneCountInString(name); n == 0 || n > maxRoomNameLength {
			return s, protocol.Errorf(protocol.KindProtocol, "room name must be 1 to %d characters", maxRoomNameLength)
		}
		next.name = name
	}

	if m.Description != nil {
		if utf8.RuneCountInString(*m.Description) > maxDescriptionLength {
			return s, protocol.Errorf(protocol.KindProtocol, "description must be at most %d characters", maxDescriptionLength)
		}
		next.description = *m.Description
	}

	if m.MaxPlayers != nil {
		n := *m.MaxPlayers
		if n < MinMaxPlayers || n > MaxMaxPlayers {
			return s, protocol.Errorf(protocol.KindCapacity, "max players must be between %d and %d", MinMaxPlayers, MaxMaxPlayers)
		}
		if n < playerCount {
			return s, protocol.Errorf(protocol.KindCapacity, "room already has %d players", playerCount)
		}
		next.maxPlayers = n
	}

	if m.PlayMode != nil {
		if !m.PlayMode.Valid() {
			return s, protocol.Errorf(protocol.KindProtocol, "invalid play mode %d", *m.PlayMode)
		}
		next.playMode = *m.PlayMode
	}

	if m.HubDeviceID != nil {
		next.hubDeviceID = *m.HubDeviceID
	}

	if m.TargetScore != nil {
		if *m.TargetScore < 0 {
			return s, protocol.Errorf(protocol.KindProtocol, "target score cannot be negative")
		}
		next.targetScore = *m.TargetScore
	}

	if m.Password != nil && *m.Password != "" && m.PasswordHash == "" {
		return s, protocol.Errorf(protocol.KindProtocol, "password was not processed")
	}

	for _, id := range m.RemoveDecks {
		idx := deckIndex(next.decks, id)
		if idx < 0 {
			return s, protocol.Errorf(protocol.KindNotFound, "deck %s is not selected", id)
		}
		next.decks = append(next.decks[:idx], next.decks[idx+1:]...)
	}
	for _, id := range m.AddDecks {
		d, ok := catalog.Get(id)
		if !ok {
			return s, protocol.Errorf(protocol.KindNotFound, "deck %s not found", id)
		}
		if deckIndex(next.decks, id) < 0 {
			next.decks = append(next.decks, d)
		}
	}

	return next, nil
}

func deckIndex(decks []*deck.Deck, id string) int {
	for i, d := range decks {
		if d.ID == id {
			return i
		}
	}
	return -1
}
