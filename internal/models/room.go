// internal/models/room.go
package models

import (
	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
)

// GamePhase is the coarse state of a room. The numeric values are part of the wire format.
type GamePhase int

const (
	GamePhaseLobby GamePhase = iota
	GamePhasePlaying
	GamePhaseEnd
)

func (p GamePhase) String() string {
	switch p {
	case GamePhaseLobby:
		return "lobby"
	case GamePhasePlaying:
		return "playing"
	case GamePhaseEnd:
		return "end"
	default:
		return "unknown"
	}
}

// PlayMode says who takes part: players only, players plus a hub display, or a hub alone.
type PlayMode int

const (
	PlayModePlayersOnly PlayMode = iota
	PlayModePlayersAndHub
	PlayModeHubOnly
)

func (m PlayMode) Valid() bool {
	return m >= PlayModePlayersOnly && m <= PlayModeHubOnly
}

// Room is an immutable snapshot of a room as sent to clients in every frame's "room" field.
type Room struct {
	ID             string         `json:"id"`
	Timestamp      int64          `json:"timestamp"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	MaxPlayers     int            `json:"maxPlayers"`
	OwnerID        string         `json:"ownerId"`
	Players        []Player       `json:"players"`
	Decks          []deck.Summary `json:"decks"`
	PlayMode       PlayMode       `json:"playMode"`
	HubDeviceID    string         `json:"hubDeviceId"`
	CurrentTurn    int            `json:"currentTurn"`
	GamePhase      GamePhase      `json:"gamePhase"`
	ActiveWildCard *card.WildCard `json:"activeWildCard"`
	DrawPileSize   int            `json:"drawPileSize"`
	TargetScore    int            `json:"targetScore"`
	Private        bool           `json:"private"`
}

// Player returns the snapshot of the player with the given ID.
func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
