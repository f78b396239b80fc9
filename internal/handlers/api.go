// internal/handlers/api.go
package handlers

import (
	"net/http"
	"time"

	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/models"
	"github.com/go-chi/chi/v5"
)

type roomCount struct {
	Public  int `json:"public"`
	Private int `json:"private"`
	Total   int `json:"total"`
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]int64{"time": time.Now().UnixMilli()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	public, private := s.sessions.Rooms().Count()
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{
		"version": Version,
		"region":  s.cfg.RegionCode,
		"rooms":   public + private,
		"decks":   s.catalog.Len(),
	})
}

// handleRooms lists public rooms only; private rooms are counted but never listed.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]*models.Room, 0)
	var count roomCount
	for _, room := range s.sessions.Rooms().List() {
		if room.IsPrivate() {
			count.Private++
			continue
		}
		snap, err := room.Snapshot(r.Context())
		if err != nil {
			// closed between List and Snapshot
			continue
		}
		count.Public++
		rooms = append(rooms, snap)
	}
	count.Total = count.Public + count.Private

	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{"rooms": rooms, "count": count})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.sessions.Rooms().Get(chi.URLParam(r, "room"))
	if !ok {
		writeError(w, s.log, http.StatusNotFound, "room not found")
		return
	}

	if room.IsPrivate() {
		password := requestPassword(r)
		if password == "" {
			// private rooms are indistinguishable from missing ones without a password
			writeError(w, s.log, http.StatusNotFound, "room not found")
			return
		}
		match, err := room.CheckPassword(password)
		if err != nil {
			s.log.WithError(err).Error("Failed to check room password")
			writeError(w, s.log, http.StatusInternalServerError, "could not check password")
			return
		}
		if !match {
			writeError(w, s.log, http.StatusForbidden, "wrong password")
			return
		}
	}

	snap, err := room.Snapshot(r.Context())
	if err != nil {
		writeError(w, s.log, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{"room": snap})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var hash string
	if password := requestPassword(r); password != "" {
		var err error
		if hash, err = s.hash(password); err != nil {
			s.log.WithError(err).Error("Failed to hash room password")
			writeError(w, s.log, http.StatusInternalServerError, "could not create room")
			return
		}
	}

	room, err := s.sessions.Rooms().Create("", hash)
	if err != nil {
		s.log.WithError(err).Error("Failed to create room")
		writeError(w, s.log, http.StatusServiceUnavailable, "could not create room")
		return
	}
	snap, err := room.Snapshot(r.Context())
	if err != nil {
		writeError(w, s.log, http.StatusServiceUnavailable, "could not create room")
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{"room": snap})
}

func (s *Server) handleDecks(w http.ResponseWriter, r *http.Request) {
	decks := make([]deck.Summary, 0, s.catalog.Len())
	for _, d := range s.catalog.List() {
		decks = append(decks, d.Summary())
	}
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	d, ok := s.catalog.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, s.log, http.StatusNotFound, "deck not found")
		return
	}
	writeJSON(w, s.log, http.StatusOK, d)
}
