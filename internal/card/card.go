// internal/card/card.go
package card

import (
	"fmt"
	"strings"
)

// CardType is the pattern printed on a card. The numeric values are part of the wire format.
type CardType int

const (
	Lines CardType = iota
	Waves
	Square
	Dots
	Hash
	Circle
	Plus
	Star

	Invalid CardType = -1
)

// NumTypes is the number of valid card types.
const NumTypes = int(Star) + 1

var symbols = [NumTypes]string{
	Lines:  "=",
	Waves:  "≈",
	Square: "■",
	Dots:   "⁘",
	Hash:   "♯",
	Circle: "○",
	Plus:   "+",
	Star:   "☆",
}

// Valid reports whether t is one of the eight card types.
func (t CardType) Valid() bool {
	return t >= Lines && t <= Star
}

// String returns the display symbol, or "?" for Invalid and out-of-range values.
func (t CardType) String() string {
	if !t.Valid() {
		return "?"
	}
	return symbols[t]
}

// TypeFromSymbol maps a display symbol back to its CardType, or Invalid.
func TypeFromSymbol(s string) CardType {
	for i, sym := range symbols {
		if sym == s {
			return CardType(i)
		}
	}
	return Invalid
}

// AllTypes returns every valid card type in ascending order.
func AllTypes() []CardType {
	types := make([]CardType, NumTypes)
	for i := range types {
		types[i] = CardType(i)
	}
	return types
}

// Drawable is anything that can sit in a draw pile: a *Card or a *WildCard.
type Drawable interface {
	DrawID() string
}

// Card is a single pattern card. Category is display-only ("Mountain Range", "Cell Phone Brand").
type Card struct {
	ID       string   `json:"id"`
	Type     CardType `json:"type"`
	Category string   `json:"category"`
}

func (c *Card) DrawID() string { return c.ID }

func (c *Card) String() string {
	return fmt.Sprintf("%s|%s", c.Type, c.Category)
}

// WildCard lets two different card types count as a match while it is active.
// Types is always sorted and holds exactly two distinct values.
type WildCard struct {
	ID    string     `json:"id"`
	Types []CardType `json:"types"`
}

func (w *WildCard) DrawID() string { return w.ID }

func (w *WildCard) String() string {
	if len(w.Types) != 2 {
		return "?|?"
	}
	return fmt.Sprintf("%s|%s", w.Types[0], w.Types[1])
}

// Covers reports whether the wild card makes a and b match.
func (w *WildCard) Covers(a, b CardType) bool {
	if w == nil || len(w.Types) != 2 {
		return false
	}
	return (a == w.Types[0] && b == w.Types[1]) || (a == w.Types[1] && b == w.Types[0])
}

// Compatible reports whether two top cards match, either by type or through the active wild card.
// A nil card never matches.
func Compatible(a, b *Card, active *WildCard) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Type == b.Type {
		return true
	}
	return active.Covers(a.Type, b.Type)
}

// Parse reads a card of the form "symbol|Category", e.g. "=|Cell Phone Brand".
// The returned card has no ID; callers assign one.
func Parse(s string) (Card, error) {
	sym, category, ok := strings.Cut(s, "|")
	if !ok {
		return Card{}, fmt.Errorf("no | found in card string %q", s)
	}
	t := TypeFromSymbol(strings.TrimSpace(sym))
	if t == Invalid {
		return Card{}, fmt.Errorf("invalid card type in card string %q", s)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return Card{}, fmt.Errorf("empty category in card string %q", s)
	}
	return Card{Type: t, Category: category}, nil
}

// ParseWild reads a wild card of the form "symbolA|symbolB", e.g. "=|≈".
func ParseWild(s string) (WildCard, error) {
	symA, symB, ok := strings.Cut(s, "|")
	if !ok {
		return WildCard{}, fmt.Errorf("no | found in wild card string %q", s)
	}
	a := TypeFromSymbol(strings.TrimSpace(symA))
	b := TypeFromSymbol(strings.TrimSpace(symB))
	if a == Invalid || b == Invalid {
		return WildCard{}, fmt.Errorf("invalid card type in wild card string %q", s)
	}
	if a == b {
		return WildCard{}, fmt.Errorf("wild card types must differ in %q", s)
	}
	if b < a {
		a, b = b, a
	}
	return WildCard{Types: []CardType{a, b}}, nil
}
