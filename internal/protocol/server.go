// internal/protocol/server.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/models"
)

// ServerMessage is one of the server-to-client variants. Values are immutable once handed to an Envelope.
type ServerMessage interface {
	ServerType() string
}

type (
	ServerChangeDetails struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		MaxPlayers  int             `json:"maxPlayers"`
		Decks       []deck.Summary  `json:"decks"`
		PlayMode    models.PlayMode `json:"playMode"`
		HubDeviceID string          `json:"hubDeviceId"`
		TargetScore int             `json:"targetScore"`
		Private     bool            `json:"private"`
	}

	ServerJoin struct {
		ID     string        `json:"id"`
		Player models.Player `json:"player"`
	}

	// ServerAck confirms a join or resume to that connection only. Token resumes the seat after a disconnect.
	ServerAck struct {
		ID    string `json:"id,omitempty"`
		Token string `json:"token,omitempty"`
	}

	ServerLeave struct {
		ID string `json:"id"`
	}

	ServerKick struct {
		ID string `json:"id"`
	}

	ServerStart struct {
		CurrentTurn int `json:"currentTurn"`
	}

	ServerDraw struct {
		PlayerID string     `json:"playerId"`
		Card     *card.Card `json:"card"`
	}

	ServerWildCard struct {
		PlayerID string         `json:"playerId"`
		Card     *card.WildCard `json:"card"`
	}

	ServerReshuffle struct {
		DrawPileSize int `json:"drawPileSize"`
	}

	ServerSend struct {
		SenderID    string     `json:"senderId"`
		RecipientID string     `json:"recipientId"`
		Card        *card.Card `json:"card"`
	}

	ServerChat struct {
		Timestamp string `json:"timestamp"`
		PlayerID  string `json:"player"`
		Private   bool   `json:"private"`
		Message   string `json:"message"`
		Recipient string `json:"recipient,omitempty"`
	}

	// ServerResync maps each player ID to the top card of that player's hand (null for an empty hand).
	ServerResync struct {
		TopCards map[string]*card.Card `json:"topCards"`
	}

	ServerTurn struct {
		PlayerID string `json:"playerId"`
	}

	ServerEnd struct {
		WinnerID string `json:"winnerId,omitempty"`
		Reason   string `json:"reason"`
	}

	ServerError struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	}
)

func (ServerChangeDetails) ServerType() string { return "change_details" }
func (ServerJoin) ServerType() string          { return "join" }
func (ServerAck) ServerType() string           { return "ack" }
func (ServerLeave) ServerType() string         { return "leave" }
func (ServerKick) ServerType() string          { return "kick" }
func (ServerStart) ServerType() string         { return "start" }
func (ServerDraw) ServerType() string          { return "draw" }
func (ServerWildCard) ServerType() string      { return "wild_card" }
func (ServerReshuffle) ServerType() string     { return "reshuffle" }
func (ServerSend) ServerType() string          { return "send" }
func (ServerChat) ServerType() string          { return "chat" }
func (ServerResync) ServerType() string        { return "resync" }
func (ServerTurn) ServerType() string          { return "turn" }
func (ServerEnd) ServerType() string           { return "end" }
func (ServerError) ServerType() string         { return "error" }

// ServerMessageTypes returns a zero value of every server message variant, keyed by its tag.
func ServerMessageTypes() map[string]ServerMessage {
	all := []ServerMessage{
		ServerChangeDetails{}, ServerJoin{}, ServerAck{}, ServerLeave{}, ServerKick{},
		ServerStart{}, ServerDraw{}, ServerWildCard{}, ServerReshuffle{}, ServerSend{},
		ServerChat{}, ServerResync{}, ServerTurn{}, ServerEnd{}, ServerError{},
	}
	out := make(map[string]ServerMessage, len(all))
	for _, m := range all {
		out[m.ServerType()] = m
	}
	return out
}

// Envelope is one outbound frame: a message plus the room snapshot taken when it was produced.
type Envelope struct {
	Seq     uint64
	Room    *models.Room
	Message ServerMessage
}

// Type returns the message's wire tag.
func (e Envelope) Type() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.ServerType()
}

// MarshalJSON flattens the message fields and adds "type", "room" and "seq".
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return nil, fmt.Errorf("envelope has no message")
	}
	body, err := json.Marshal(e.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.Message.ServerType(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("message %s is not a JSON object: %w", e.Message.ServerType(), err)
	}

	if fields["type"], err = json.Marshal(e.Message.ServerType()); err != nil {
		return nil, err
	}
	if fields["room"], err = json.Marshal(e.Room); err != nil {
		return nil, fmt.Errorf("failed to marshal room snapshot: %w", err)
	}
	if fields["seq"], err = json.Marshal(e.Seq); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
