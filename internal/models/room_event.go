package models

// RoomEvent is one journal record: a server event a room produced, in room order.
type RoomEvent struct {
	RoomID    string      `json:"room_id"`
	Seq       uint64      `json:"seq"`
	ActorID   string      `json:"actor_id,omitempty"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}
