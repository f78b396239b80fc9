// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/calico32/cardgame/internal/cache"
	"github.com/calico32/cardgame/internal/config"
	"github.com/calico32/cardgame/internal/deck"
	"github.com/calico32/cardgame/internal/game"
	"github.com/calico32/cardgame/internal/handlers"
	"github.com/calico32/cardgame/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}
	logger.SetLevel(cfg.LogLevel)

	var tokens *auth.Tokens
	if cfg.TokenPrivateKey != "" {
		tokens, err = auth.NewTokensFromFiles(cfg.TokenPrivateKey, cfg.TokenPublicKey, cfg.TokenTTL)
	} else {
		logger.Info("No token keys configured, generating an ephemeral key pair")
		tokens, err = auth.NewTokens(cfg.TokenTTL)
	}
	if err != nil {
		logger.Fatalf("failed to set up reconnect tokens: %v", err)
	}

	catalog, err := deck.Load(cfg.DecksDir, logger)
	if err != nil {
		logger.Fatalf("failed to load decks: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the journal outlives the signal context so events from closing rooms are still published
	journalCtx, stopJournal := context.WithCancel(context.Background())
	journalDone := make(chan struct{})
	close(journalDone)

	storeCfg := game.StoreConfig{
		Catalog:   catalog,
		ReapGrace: cfg.RoomReapGrace,
		Seed:      cfg.DrawSeed,
		Logger:    logger,
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		journal := cache.NewRoomJournal(rdb, cfg.JournalQueue, 1024, logger)
		journalDone = make(chan struct{})
		go func() {
			defer close(journalDone)
			journal.Run(journalCtx)
		}()
		storeCfg.Journal = journal
		logger.WithField("queue", cfg.JournalQueue).Info("Room journal enabled")
	}

	sessions := session.NewManager(session.Config{
		Store:  storeCfg,
		Tokens: tokens,
		Grace:  cfg.ReconnectGrace,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewServer(sessions, catalog, cfg, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// rooms first, so their connections are closed before the listener waits on them
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Rooms did not close in time")
	}
	stopJournal()
	<-journalDone
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
}
