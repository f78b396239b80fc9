// internal/handlers/server.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/calico32/cardgame/internal/config"
	"github.com/calico32/cardgame/internal/deck"
	applog "github.com/calico32/cardgame/internal/middleware"
	"github.com/calico32/cardgame/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Version is reported by /api/info. Overridden at build time with -ldflags.
var Version = "dev"

// Server serves the REST API and the room websocket.
type Server struct {
	sessions *session.Manager
	catalog  *deck.Catalog
	cfg      *config.Config
	log      logrus.FieldLogger
	hash     func(password string) (string, error)
	origins  []string
}

// Option customizes a Server.
type Option func(*Server)

// WithPasswordHasher replaces auth.HashPassword, mostly so tests can use cheap parameters.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(s *Server) { s.hash = hash }
}

func NewServer(sessions *session.Manager, catalog *deck.Catalog, cfg *config.Config, logger logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		catalog:  catalog,
		cfg:      cfg,
		log:      logger,
		hash:     auth.HashPassword,
	}
	for _, o := range opts {
		o(s)
	}
	// websocket origin patterns match hosts, not full origins
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		s.origins = append(s.origins, o)
	}
	return s
}

// Routes builds the chi router for every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(applog.LogMiddleware(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Password"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleTime)
		r.Get("/info", s.handleInfo)
		r.Get("/rooms", s.handleRooms)
		r.Post("/room", s.handleCreateRoom)
		r.Get("/room/{room}", s.handleRoom)
		r.Get("/decks", s.handleDecks)
		r.Get("/deck/{id}", s.handleDeck)
		r.Get("/ws/{room}", s.handleWS)
	})
	return r
}
