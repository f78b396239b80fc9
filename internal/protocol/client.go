// internal/protocol/client.go
package protocol

import (
	"encoding/json"

	"github.com/calico32/cardgame/internal/models"
)

// ClientMessage is one of the client-to-server variants, selected by the "type" field.
type ClientMessage interface {
	ClientType() string
}

type (
	// ChangeDetails is sent by the owner to edit room settings. Nil fields are left unchanged.
	ChangeDetails struct {
		Name        *string          `json:"name"`
		Description *string          `json:"description"`
		MaxPlayers  *int             `json:"maxPlayers"`
		Password    *string          `json:"password"` // "" makes the room public
		AddDecks    []string         `json:"addDecks"`
		RemoveDecks []string         `json:"removeDecks"`
		PlayMode    *models.PlayMode `json:"playMode"`
		HubDeviceID *string          `json:"hubDeviceId"`
		TargetScore *int             `json:"targetScore"`

		// PasswordHash is filled in by the router before the message reaches the room.
		PasswordHash string `json:"-"`
	}

	Join struct {
		Name   string              `json:"name"`
		Avatar models.AvatarConfig `json:"avatar"`

		// Token is the reconnect token issued by the router; it is echoed back in the ack.
		Token string `json:"-"`
	}

	Leave struct{}

	Kick struct {
		ID string `json:"id"`
	}

	Start struct{}

	Draw struct{}

	// Send passes the sender's top card to RecipientID after a matching face-off.
	Send struct {
		RecipientID string `json:"recipientId"`
	}

	// Chat is room-wide unless Recipient is set.
	Chat struct {
		Message   string  `json:"message"`
		Recipient *string `json:"recipient"`
	}

	Resync struct{}

	Ack struct {
		Seq uint64 `json:"seq"`
	}

	End struct{}
)

func (ChangeDetails) ClientType() string { return "change_details" }
func (Join) ClientType() string          { return "join" }
func (Leave) ClientType() string         { return "leave" }
func (Kick) ClientType() string          { return "kick" }
func (Start) ClientType() string         { return "start" }
func (Draw) ClientType() string          { return "draw" }
func (Send) ClientType() string          { return "send" }
func (Chat) ClientType() string          { return "chat" }
func (Resync) ClientType() string        { return "resync" }
func (Ack) ClientType() string           { return "ack" }
func (End) ClientType() string           { return "end" }

var clientTypes = map[string]func() ClientMessage{
	"change_details": func() ClientMessage { return &ChangeDetails{} },
	"join":           func() ClientMessage { return &Join{} },
	"leave":          func() ClientMessage { return &Leave{} },
	"kick":           func() ClientMessage { return &Kick{} },
	"start":          func() ClientMessage { return &Start{} },
	"draw":           func() ClientMessage { return &Draw{} },
	"send":           func() ClientMessage { return &Send{} },
	"chat":           func() ClientMessage { return &Chat{} },
	"resync":         func() ClientMessage { return &Resync{} },
	"ack":            func() ClientMessage { return &Ack{} },
	"end":            func() ClientMessage { return &End{} },
}

// ClientMessageTypes returns a zero value of every client message variant, keyed by its tag.
func ClientMessageTypes() map[string]ClientMessage {
	out := make(map[string]ClientMessage, len(clientTypes))
	for tag, ctor := range clientTypes {
		out[tag] = ctor()
	}
	return out
}

// Decode parses one client frame. Every failure is a KindProtocol *Error.
// The returned message is always a pointer to one of the variant structs.
func Decode(data []byte) (ClientMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, Errorf(KindProtocol, "invalid JSON: %v", err)
	}
	if head.Type == "" {
		return nil, Errorf(KindProtocol, "missing message type")
	}

	ctor, ok := clientTypes[head.Type]
	if !ok {
		return nil, Errorf(KindProtocol, "unknown message type %q", head.Type)
	}
	msg := ctor()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, Errorf(KindProtocol, "invalid %s payload: %v", head.Type, err)
	}
	return msg, nil
}
