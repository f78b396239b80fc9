package deck

import (
	"io"
	"testing"
	"testing/fstest"

	"github.com/calico32/cardgame/internal/card"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foodDeck = `
name: Food
description: Things you can eat
cards:
  - "=|Fruit"
  - "○|Cheese"
  - "☆|Pasta Shape"
wild_cards:
  - "○|="
`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestParseDeck(t *testing.T) {
	d, err := Parse("party.food", []byte(foodDeck))
	require.NoError(t, err)

	assert.Equal(t, "Food", d.Name)
	assert.Equal(t, "party.food", d.Location)
	require.Len(t, d.Cards, 3)
	require.Len(t, d.WildCards, 1)
	assert.Equal(t, card.Lines, d.Cards[0].Type)
	assert.Equal(t, d.ID+"-c2", d.Cards[2].ID)
	assert.Equal(t, []card.CardType{card.Lines, card.Circle}, d.WildCards[0].Types)
	assert.Equal(t, d.ID+"-w0", d.WildCards[0].ID)

	again, err := Parse("party.food", []byte(foodDeck))
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID, "deck ids are content-derived")

	moved, err := Parse("food", []byte(foodDeck))
	require.NoError(t, err)
	assert.NotEqual(t, d.ID, moved.ID)
}

func TestParseDeckErrors(t *testing.T) {
	_, err := Parse("empty", []byte("name: Empty\n"))
	assert.ErrorIs(t, err, ErrNoCards)

	_, err = Parse("bad", []byte("cards: [\"x|Nope\"]\n"))
	assert.Error(t, err)

	_, err = Parse("badwild", []byte("cards: [\"=|Ok\"]\nwild_cards: [\"=|=\"]\n"))
	assert.Error(t, err)

	_, err = Parse("notyaml", []byte("cards: [unterminated"))
	assert.Error(t, err)
}

func TestParseDeckDefaultsNameToLocation(t *testing.T) {
	d, err := Parse("misc.animals", []byte("cards: [\"+|Bird\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, "misc.animals", d.Name)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"food.yml":            {Data: []byte(foodDeck)},
		"party/animals.yml":   {Data: []byte("name: Animals\ncards: [\"+|Bird\", \"■|Fish\"]\n")},
		"_drafts/wip.yml":     {Data: []byte("cards: [\"x|broken\"]\n")},
		"_hidden.yml":         {Data: []byte("cards: [\"x|broken\"]\n")},
		"dotted.name.yml":     {Data: []byte(foodDeck)},
		"dir.with.dot/a.yml":  {Data: []byte(foodDeck)},
		"README.md":           {Data: []byte("not a deck")},
		"party/notes.txt":     {Data: []byte("ignored")},
		"party/sub/deep.yml":  {Data: []byte("cards: [\"♯|Number\"]\n")},
		"party/sub/_skip.yml": {Data: []byte("cards: []\n")},
	}

	cat, err := LoadFS(fsys, quietLogger())
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	var locations []string
	for _, d := range cat.List() {
		locations = append(locations, d.Location)
	}
	assert.Equal(t, []string{"food", "party.animals", "party.sub.deep"}, locations)

	first := cat.List()[0]
	got, ok := cat.Get(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = cat.Get("dnope")
	assert.False(t, ok)
}

func TestLoadFSPropagatesBadDeck(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.yml": {Data: []byte("cards: [\"x|broken\"]\n")},
	}
	_, err := LoadFS(fsys, quietLogger())
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	d, err := Parse("food", []byte(foodDeck))
	require.NoError(t, err)
	s := d.Summary()
	assert.Equal(t, d.ID, s.ID)
	assert.Equal(t, 3, s.CardCount)
	assert.Equal(t, 1, s.WildCardCount)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.List())
	_, ok := c.Get("x")
	assert.False(t, ok)
}
