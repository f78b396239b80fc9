package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// requestPassword reads a room password from the X-Password header, falling back to the "password" query parameter.
// Browsers cannot set headers on a websocket handshake, hence the fallback.
func requestPassword(r *http.Request) string {
	if p := r.Header.Get("X-Password"); p != "" {
		return p
	}
	return r.URL.Query().Get("password")
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, log logrus.FieldLogger, status int, message string) {
	writeJSON(w, log, status, map[string]string{"error": message})
}
