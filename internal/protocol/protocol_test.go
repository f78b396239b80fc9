package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/calico32/cardgame/internal/card"
	"github.com/calico32/cardgame/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want ClientMessage
	}{
		{`{"type":"join","name":"Ada","avatar":{"eyes":1,"mouth":2,"color":3}}`,
			&Join{Name: "Ada", Avatar: models.AvatarConfig{Eyes: 1, Mouth: 2, Color: 3}}},
		{`{"type":"leave"}`, &Leave{}},
		{`{"type":"kick","id":"p2"}`, &Kick{ID: "p2"}},
		{`{"type":"start"}`, &Start{}},
		{`{"type":"draw"}`, &Draw{}},
		{`{"type":"send","recipientId":"p3"}`, &Send{RecipientID: "p3"}},
		{`{"type":"resync"}`, &Resync{}},
		{`{"type":"ack","seq":12}`, &Ack{Seq: 12}},
		{`{"type":"end"}`, &End{}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestDecodeChangeDetailsOptionalFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"change_details","name":"Friday","maxPlayers":6,"playMode":1,"addDecks":["d1"]}`))
	require.NoError(t, err)
	cd, ok := msg.(*ChangeDetails)
	require.True(t, ok)

	require.NotNil(t, cd.Name)
	assert.Equal(t, "Friday", *cd.Name)
	require.NotNil(t, cd.MaxPlayers)
	assert.Equal(t, 6, *cd.MaxPlayers)
	require.NotNil(t, cd.PlayMode)
	assert.Equal(t, models.PlayModePlayersAndHub, *cd.PlayMode)
	assert.Equal(t, []string{"d1"}, cd.AddDecks)
	assert.Nil(t, cd.Description)
	assert.Nil(t, cd.Password)
	assert.Nil(t, cd.TargetScore)
}

func TestDecodePrivateChat(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat","message":"psst","recipient":"p2"}`))
	require.NoError(t, err)
	chat := msg.(*Chat)
	require.NotNil(t, chat.Recipient)
	assert.Equal(t, "p2", *chat.Recipient)

	msg, err = Decode([]byte(`{"type":"chat","message":"hi all"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.(*Chat).Recipient)
}

func TestDecodeErrorsAreProtocolKind(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"type":"teleport"}`,
		`{"type":"kick","id":5}`,
		`["join"]`,
	} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, raw)
		assert.Equal(t, KindProtocol, KindOf(err), raw)
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := Errorf(KindCapacity, "room is full")
	wrapped := fmt.Errorf("join: %w", base)
	assert.Equal(t, KindCapacity, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "capacity error: room is full", base.Error())
}

func TestToServerError(t *testing.T) {
	se := ToServerError(Errorf(KindNotFound, "player %s not found", "p9"))
	assert.Equal(t, "player p9 not found", se.Message)
	assert.Equal(t, "not_found", se.Kind)

	se = ToServerError(errors.New("boom"))
	assert.Equal(t, "boom", se.Message)
	assert.Equal(t, "unknown", se.Kind)
}

func TestEnvelopeMarshalAddsTypeRoomSeq(t *testing.T) {
	room := &models.Room{ID: "rabcdef", Name: "Test", MaxPlayers: 4, GamePhase: models.GamePhasePlaying}
	env := Envelope{
		Seq:     7,
		Room:    room,
		Message: &ServerDraw{PlayerID: "p1", Card: &card.Card{ID: "c1", Type: card.Star, Category: "Planet"}},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "draw", decoded["type"])
	assert.Equal(t, float64(7), decoded["seq"])
	assert.Equal(t, "p1", decoded["playerId"])

	roomField, ok := decoded["room"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rabcdef", roomField["id"])
	assert.Equal(t, float64(1), roomField["gamePhase"])

	cardField := decoded["card"].(map[string]interface{})
	assert.Equal(t, float64(7), cardField["type"])
}

func TestEnvelopeEmptyMessage(t *testing.T) {
	_, err := json.Marshal(Envelope{Seq: 1, Room: &models.Room{}})
	assert.Error(t, err)
}

func TestServerTypesAreDistinct(t *testing.T) {
	types := ServerMessageTypes()
	assert.Len(t, types, 15, "every variant has its own tag")
	for tag, m := range types {
		assert.Equal(t, tag, m.ServerType())
	}
}

func TestClientMessageTypesDecode(t *testing.T) {
	for tag, m := range ClientMessageTypes() {
		assert.Equal(t, tag, m.ClientType())
		decoded, err := Decode([]byte(fmt.Sprintf(`{"type":%q}`, tag)))
		require.NoError(t, err, tag)
		assert.IsType(t, m, decoded)
	}
}
