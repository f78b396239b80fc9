package models

import "github.com/calico32/cardgame/internal/card"

// AvatarConfig selects the cosmetic pieces of a player's avatar.
type AvatarConfig struct {
	Eyes  int `json:"eyes"`
	Mouth int `json:"mouth"`
	Color int `json:"color"`
}

// Player is the wire view of a room member. Cards is the player's hand; the top card is the last element.
type Player struct {
	ID        string       `json:"id"`
	Avatar    AvatarConfig `json:"avatar"`
	Name      string       `json:"name"`
	Score     int          `json:"score"`
	Cards     []*card.Card `json:"cards"`
	Connected bool         `json:"connected"`
}

// Top returns the top card of the player's hand, or nil for an empty hand.
func (p *Player) Top() *card.Card {
	if len(p.Cards) == 0 {
		return nil
	}
	return p.Cards[len(p.Cards)-1]
}

// Clone returns a copy whose hand slice can be retained after the original keeps changing.
// Cards themselves are immutable and shared.
func (p *Player) Clone() Player {
	cp := *p
	cp.Cards = append(make([]*card.Card, 0, len(p.Cards)), p.Cards...)
	return cp
}
