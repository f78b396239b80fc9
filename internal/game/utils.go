// internal/game/utils.go
package game

import (
	"math/rand"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const roomCodeAlphabet = "abcdefghijklmnopqrstuvwxyz"

// validRoomID matches ids accepted from clients when opening a websocket to a room.
var validRoomID = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

// NewRoomID returns a fresh room code: "r" followed by six lowercase letters.
func NewRoomID() string {
	return "r" + gonanoid.MustGenerate(roomCodeAlphabet, 6)
}

// ValidRoomID reports whether id may name a room.
func ValidRoomID(id string) bool {
	return validRoomID.MatchString(id)
}

var (
	adjectives = []string{
		"Sneaky", "Lucky", "Brave", "Sleepy", "Fuzzy", "Cosmic", "Quiet", "Spicy",
		"Mellow", "Rapid", "Golden", "Tiny", "Grumpy", "Jolly", "Wobbly", "Clever",
	}
	animals = []string{
		"Otter", "Falcon", "Badger", "Panda", "Gecko", "Lynx", "Walrus", "Heron",
		"Marmot", "Koala", "Yak", "Moose", "Ferret", "Newt", "Puffin", "Tapir",
	}
	places = []string{
		"Lounge", "Den", "Arcade", "Parlor", "Hideout", "Garage", "Attic", "Cabin",
	}
)

func pick(words []string) string {
	return words[rand.Intn(len(words))]
}

func randomPlayerName() string {
	return pick(adjectives) + " " + pick(animals)
}

func randomRoomName() string {
	return "The " + pick(adjectives) + " " + pick(places)
}
