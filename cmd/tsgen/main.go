// cmd/tsgen/main.go generates TypeScript declarations for the wire protocol.
//
//	go run ./cmd/tsgen -out web/src/models.ts
package main

import (
	"flag"
	"reflect"
	"sort"
	"strings"

	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/models"
	"github.com/calico32/cardgame/internal/protocol"
	"github.com/sirupsen/logrus"
	"github.com/tkrajina/typescriptify-golang-structs/typescriptify"
)

var gamePhases = []struct {
	Value  models.GamePhase
	TSName string
}{
	{models.GamePhaseLobby, "Lobby"},
	{models.GamePhasePlaying, "Playing"},
	{models.GamePhaseEnd, "End"},
}

var playModes = []struct {
	Value  models.PlayMode
	TSName string
}{
	{models.PlayModePlayersOnly, "PlayersOnly"},
	{models.PlayModePlayersAndHub, "PlayersAndHub"},
	{models.PlayModeHubOnly, "HubOnly"},
}

var cardTypes = []struct {
	Value  card.CardType
	TSName string
}{
	{card.Lines, "Lines"},
	{card.Waves, "Waves"},
	{card.Square, "Square"},
	{card.Dots, "Dots"},
	{card.Hash, "Hash"},
	{card.Circle, "Circle"},
	{card.Plus, "Plus"},
	{card.Star, "Star"},
	{card.Invalid, "Invalid"},
}

func main() {
	out := flag.String("out", "ts/models.ts", "output file")
	flag.Parse()

	converter := typescriptify.New().WithInterface(true).
		Add(models.Room{}).
		Add(models.Player{}).
		Add(deck.Deck{}).
		Add(deck.Summary{}).
		Add(card.Card{}).
		Add(card.WildCard{}).
		AddEnum(gamePhases).
		AddEnum(playModes).
		AddEnum(cardTypes)
	converter.BackupDir = ""

	clients := protocol.ClientMessageTypes()
	servers := protocol.ServerMessageTypes()
	for _, tag := range sortedKeys(clients) {
		converter.Add(reflect.Indirect(reflect.ValueOf(clients[tag])).Interface())
	}
	for _, tag := range sortedKeys(servers) {
		converter.Add(servers[tag])
	}

	var unions strings.Builder
	unions.WriteString("export type ClientMessage =\n")
	for _, tag := range sortedKeys(clients) {
		name := reflect.Indirect(reflect.ValueOf(clients[tag])).Type().Name()
		unions.WriteString("    | ({ type: \"" + tag + "\" } & " + name + ")\n")
	}
	unions.WriteString("\nexport type ServerMessage =\n")
	for _, tag := range sortedKeys(servers) {
		name := reflect.TypeOf(servers[tag]).Name()
		unions.WriteString("    | ({ type: \"" + tag + "\"; room: Room; seq: number } & " + name + ")\n")
	}
	converter.AddImport(unions.String())

	if err := converter.ConvertToFile(*out); err != nil {
		logrus.Fatalf("failed to write %s: %v", *out, err)
	}
	logrus.Infof("Wrote %s", *out)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
