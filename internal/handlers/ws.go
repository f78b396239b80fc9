// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/calico32/cardgame/internal/game"
	applog "github.com/calico32/cardgame/internal/middleware"
	"github.com/calico32/cardgame/internal/session"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	writeTimeout      = 10 * time.Second
	pingInterval      = 30 * time.Second
	disconnectTimeout = 5 * time.Second
)

// handleWS upgrades a room connection. Without a token the connection watches the room until it joins;
// with one it resumes the player the token names.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room")
	if !game.ValidRoomID(roomID) {
		writeError(w, s.log, http.StatusBadRequest, "invalid room id")
		return
	}
	token := r.URL.Query().Get("token")
	log := s.log.WithFields(logrus.Fields{"room": roomID, "remote": r.RemoteAddr})

	var room *game.Room
	if token == "" {
		var status int
		if room, status = s.openRoom(roomID, requestPassword(r), log); room == nil {
			writeError(w, s.log, status, http.StatusText(status))
			return
		}
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(s.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := newConnection(cancel, log)

	var sess *session.Session
	if token != "" {
		sess, err = s.sessions.Resume(ctx, roomID, token, conn)
		if err != nil {
			log.WithError(err).Info("Resume refused")
			if errors.Is(err, session.ErrRoomGone) || errors.Is(err, game.ErrRoomClosed) {
				c.Close(InvalidRoomIDError, "room no longer exists")
			} else {
				c.Close(InvalidAuthTokenError, "invalid reconnect token")
			}
			return
		}
	} else if sess, err = s.sessions.Connect(ctx, room, conn); err != nil {
		c.Close(RoomClosedError, "room closed")
		return
	}
	log = log.WithField("session", sess.ID)
	applog.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path)

	go writePump(ctx, c, conn)
	readErr := s.readPump(ctx, c, sess)
	cancel()

	dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
	s.sessions.Disconnect(dctx, sess)
	dcancel()

	if _, open := s.sessions.Rooms().Get(sess.RoomID); !open || errors.Is(readErr, game.ErrRoomClosed) {
		c.Close(RoomClosedError, "room closed")
	} else {
		c.Close(websocket.StatusNormalClosure, "")
	}
	if websocket.CloseStatus(readErr) != -1 || errors.Is(readErr, context.Canceled) {
		readErr = nil
	}
	applog.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, readErr)
}

// openRoom finds or creates the room for a fresh connection. A nil room comes with the HTTP status to refuse with.
func (s *Server) openRoom(id, password string, log logrus.FieldLogger) (*game.Room, int) {
	rooms := s.sessions.Rooms()
	if room, ok := rooms.Get(id); ok {
		return s.admit(room, password, log)
	}

	var hash string
	if password != "" {
		var err error
		if hash, err = s.hash(password); err != nil {
			log.WithError(err).Error("Failed to hash room password")
			return nil, http.StatusInternalServerError
		}
	}
	room, created, err := rooms.Ensure(id, hash)
	if err != nil {
		return nil, http.StatusServiceUnavailable
	}
	if !created {
		// lost a race with another connection creating the same room
		return s.admit(room, password, log)
	}
	return room, 0
}

func (s *Server) admit(room *game.Room, password string, log logrus.FieldLogger) (*game.Room, int) {
	ok, err := room.CheckPassword(password)
	if err != nil {
		log.WithError(err).Error("Failed to check room password")
		return nil, http.StatusInternalServerError
	}
	if !ok {
		return nil, http.StatusForbidden
	}
	return room, 0
}

// readPump feeds text frames to the session manager until the socket or the room goes away.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, sess *session.Session) error {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.InboundRate), s.cfg.InboundBurst)
	log := s.log.WithFields(logrus.Fields{"room": sess.RoomID, "session": sess.ID})

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("Received non-text message type %d. Ignoring.", typ)
			continue
		}

		if err := s.sessions.Handle(ctx, sess, data); err != nil {
			if errors.Is(err, game.ErrRoomClosed) || ctx.Err() != nil {
				return err
			}
			log.WithError(err).Warn("Failed to handle message")
		}
	}
}

// writePump drains the connection's queue and keeps the socket alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-conn.OutChan:
			data, err := json.Marshal(env)
			if err != nil {
				conn.log.WithError(err).WithField("type", env.Type()).Error("Failed to marshal outgoing frame")
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					conn.log.WithError(err).Warn("Write failed, closing connection")
				}
				conn.Close()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					conn.log.WithError(err).Info("Ping failed, closing connection")
				}
				conn.Close()
				return
			}
		}
	}
}
