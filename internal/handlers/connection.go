// internal/handlers/connection.go
package handlers

import (
	"context"

	"github.com/calico32/cardgame/internal/protocol"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const outboundBuffer = 64

// Connection is the room's handle on one websocket. Frames are queued on OutChan and written by the write pump.
type Connection struct {
	ID      string
	OutChan chan protocol.Envelope
	Cancel  context.CancelFunc // stops both pumps
	log     logrus.FieldLogger
}

func newConnection(cancel context.CancelFunc, logger logrus.FieldLogger) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:      id,
		OutChan: make(chan protocol.Envelope, outboundBuffer),
		Cancel:  cancel,
		log:     logger.WithField("conn", id),
	}
}

// Send queues env without blocking. A full buffer drops the frame.
func (c *Connection) Send(env protocol.Envelope) bool {
	select {
	case c.OutChan <- env:
		return true
	default:
		c.log.WithFields(logrus.Fields{"type": env.Type(), "seq": env.Seq}).Warn("Outbound buffer full, dropped frame")
		return false
	}
}

// Close stops the connection's pumps. It never blocks, so rooms may call it from their worker.
func (c *Connection) Close() {
	c.Cancel()
}
