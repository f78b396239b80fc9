// internal/game/policy.go
package game

import (
	"math/rand"

	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
)

// WildCardPolicy decides where wild cards live during a game.
type WildCardPolicy interface {
	// PileWildCards returns the wild cards shuffled into the pile at start.
	PileWildCards(decks []*deck.Deck) []*card.WildCard
	// AfterReshuffle returns the active and retired wild cards once the pile has been rebuilt.
	AfterReshuffle(active *card.WildCard, retired []*card.WildCard, rng *rand.Rand) (*card.WildCard, []*card.WildCard)
}

// ShuffledWildCards puts every selected deck's wild cards in the pile. On a reshuffle one of the
// wild cards seen so far is picked at random to stay active; the rest stay retired.
type ShuffledWildCards struct{}

func (ShuffledWildCards) PileWildCards(decks []*deck.Deck) []*card.WildCard {
	var out []*card.WildCard
	for _, d := range decks {
		out = append(out, d.WildCards...)
	}
	return out
}

func (ShuffledWildCards) AfterReshuffle(active *card.WildCard, retired []*card.WildCard, rng *rand.Rand) (*card.WildCard, []*card.WildCard) {
	seen := append([]*card.WildCard(nil), retired...)
	if active != nil {
		seen = append(seen, active)
	}
	if len(seen) == 0 {
		return nil, nil
	}
	i := rng.Intn(len(seen))
	picked := seen[i]
	seen = append(seen[:i], seen[i+1:]...)
	return picked, seen
}

// NoWildCards plays with plain cards only.
type NoWildCards struct{}

func (NoWildCards) PileWildCards([]*deck.Deck) []*card.WildCard { return nil }

func (NoWildCards) AfterReshuffle(*card.WildCard, []*card.WildCard, *rand.Rand) (*card.WildCard, []*card.WildCard) {
	return nil, nil
}
