// internal/deck/deck.go
package deck

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/calico32/cardgame/internal/card"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"
)

// ErrNoCards is returned for a deck file that lists no cards.
var ErrNoCards = errors.New("deck has no cards")

// yamlDeck is the on-disk representation of a deck.
type yamlDeck struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Cards       []string `yaml:"cards"`
	WildCards   []string `yaml:"wild_cards"`
}

// Deck is an immutable set of cards and wild cards. Rooms refer to decks by ID and never mutate them.
type Deck struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
	Cards       []*card.Card     `json:"cards"`
	WildCards   []*card.WildCard `json:"wildCards"`
}

// Summary is the lightweight view of a deck used in room snapshots and listings.
type Summary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	CardCount     int    `json:"cardCount"`
	WildCardCount int    `json:"wildCardCount"`
}

func (d *Deck) Summary() Summary {
	return Summary{
		ID:            d.ID,
		Name:          d.Name,
		Location:      d.Location,
		Description:   d.Description,
		CardCount:     len(d.Cards),
		WildCardCount: len(d.WildCards),
	}
}

// idFrom hashes text into a short, stable identifier with the given prefix.
func idFrom(prefix, text string) string {
	sum := sha3.Sum256([]byte(text))
	return fmt.Sprintf("%s%x", prefix, sum[:8])
}

// Parse builds a deck from YAML contents. location is the dotted path the deck was found at.
func Parse(location string, contents []byte) (*Deck, error) {
	var y yamlDeck
	if err := yaml.Unmarshal(contents, &y); err != nil {
		return nil, fmt.Errorf("deck %s: %w", location, err)
	}
	if len(y.Cards) == 0 {
		return nil, fmt.Errorf("deck %s: %w", location, ErrNoCards)
	}

	d := &Deck{
		Name:        y.Name,
		Description: y.Description,
		Location:    location,
	}
	if d.Name == "" {
		d.Name = location
	}

	// the id covers the card list, so editing a deck file yields a new id
	seed := []string{location, y.Name, y.Description}
	cards := make([]card.Card, 0, len(y.Cards))
	for _, s := range y.Cards {
		c, err := card.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("deck %s: %w", location, err)
		}
		cards = append(cards, c)
		seed = append(seed, c.String())
	}
	wilds := make([]card.WildCard, 0, len(y.WildCards))
	for _, s := range y.WildCards {
		w, err := card.ParseWild(s)
		if err != nil {
			return nil, fmt.Errorf("deck %s: %w", location, err)
		}
		wilds = append(wilds, w)
		seed = append(seed, "w:"+w.String())
	}
	d.ID = idFrom("d", strings.Join(seed, "\n"))

	for i := range cards {
		c := cards[i]
		c.ID = fmt.Sprintf("%s-c%d", d.ID, i)
		d.Cards = append(d.Cards, &c)
	}
	for i := range wilds {
		w := wilds[i]
		w.ID = fmt.Sprintf("%s-w%d", d.ID, i)
		d.WildCards = append(d.WildCards, &w)
	}
	return d, nil
}

// Catalog is the read-only set of decks available to every room.
type Catalog struct {
	decks map[string]*Deck
	order []string
}

// NewCatalog indexes the given decks by ID. Later duplicates replace earlier ones.
func NewCatalog(decks ...*Deck) *Catalog {
	c := &Catalog{decks: make(map[string]*Deck, len(decks))}
	for _, d := range decks {
		if _, exists := c.decks[d.ID]; !exists {
			c.order = append(c.order, d.ID)
		}
		c.decks[d.ID] = d
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.decks[c.order[i]].Location < c.decks[c.order[j]].Location
	})
	return c
}

// Get returns the deck with the given ID.
func (c *Catalog) Get(id string) (*Deck, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.decks[id]
	return d, ok
}

// List returns every deck ordered by location.
func (c *Catalog) List() []*Deck {
	if c == nil {
		return nil
	}
	out := make([]*Deck, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.decks[id])
	}
	return out
}

// Len returns the number of decks in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.decks)
}

// Load scans dir recursively for *.yml decks.
func Load(dir string, logger logrus.FieldLogger) (*Catalog, error) {
	return LoadFS(os.DirFS(dir), logger)
}

// LoadFS scans fsys recursively for *.yml decks. Entries starting with "_" are ignored,
// and nested directories become a dotted location prefix ("party.food").
func LoadFS(fsys fs.FS, logger logrus.FieldLogger) (*Catalog, error) {
	var decks []*Deck
	if err := scan(fsys, ".", "", logger, &decks); err != nil {
		return nil, err
	}
	logger.WithField("decks", len(decks)).Info("Loaded deck catalog")
	return NewCatalog(decks...), nil
}

func scan(fsys fs.FS, dir, prefix string, logger logrus.FieldLogger, out *[]*Deck) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read deck directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}

		if entry.IsDir() {
			if strings.Contains(name, ".") {
				logger.Warnf("Skipping deck directory %s: name contains a dot", name)
				continue
			}
			if err := scan(fsys, path.Join(dir, name), prefix+name+".", logger, out); err != nil {
				return err
			}
			continue
		}

		if !strings.HasSuffix(name, ".yml") {
			continue
		}
		clean := strings.TrimSuffix(name, ".yml")
		if strings.Contains(clean, ".") {
			logger.Warnf("Skipping deck %s: name contains a dot", name)
			continue
		}

		contents, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read deck %s: %w", name, err)
		}
		d, err := Parse(prefix+clean, contents)
		if err != nil {
			return err
		}
		*out = append(*out, d)
	}
	return nil
}
