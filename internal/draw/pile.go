// internal/draw/pile.go
package draw

import (
	"math/rand"
	"time"

	"github.com/calico32/cardgame/internal/card"
)

// Shuffle permutes items in place with a Fisher-Yates shuffle driven by rng,
// so every ordering is equally likely and a fixed seed gives a fixed order.
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// NewRand returns a generator seeded from seed, or from the clock when seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Pile is one room's ordered draw pile. It is not safe for concurrent use;
// the owning room's worker is its only caller.
type Pile struct {
	rng   *rand.Rand
	cards []card.Drawable
}

func NewPile(rng *rand.Rand) *Pile {
	return &Pile{rng: rng}
}

// Reset replaces the pile contents with a shuffled copy of items.
func (p *Pile) Reset(items []card.Drawable) {
	p.cards = append(make([]card.Drawable, 0, len(items)), items...)
	Shuffle(p.rng, p.cards)
}

// Draw removes and returns the top of the pile. ok is false when the pile is empty.
func (p *Pile) Draw() (c card.Drawable, ok bool) {
	if len(p.cards) == 0 {
		return nil, false
	}
	c = p.cards[0]
	p.cards[0] = nil
	p.cards = p.cards[1:]
	return c, true
}

func (p *Pile) Len() int {
	return len(p.cards)
}

// Clear empties the pile.
func (p *Pile) Clear() {
	p.cards = nil
}

// Rand exposes the pile's generator so wild-card selection shares the room's seed.
func (p *Pile) Rand() *rand.Rand {
	return p.rng
}
