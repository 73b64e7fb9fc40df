package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/config"
	"github.com/robalobadob/shapematch/internal/httpserver"
	"github.com/robalobadob/shapematch/internal/scores"
	"github.com/robalobadob/shapematch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	backend, closeBackend, err := openScores(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.ScoreStore).Msg("failed to open score store")
	}
	defer closeBackend()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tables := store.NewMemoryStore()
	go sweep(ctx, tables, cfg.TableIdleTimeout)

	srv := httpserver.New(cfg, tables, backend)
	hs := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Closing the tables ends event streams so Shutdown can drain.
	hs.RegisterOnShutdown(func() { tables.CloseAll(context.Background()) })

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.ScoreStore).Msg("starting shapematch")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}

// openScores returns the configured score backend and its closer.
func openScores(cfg config.Config) (httpserver.Backend, func(), error) {
	if cfg.ScoreStore == config.StoreMemory {
		return scores.NewMemory(), func() {}, nil
	}
	db, err := scores.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// sweep closes idle tables until ctx is done.
func sweep(ctx context.Context, tables store.Store, idle time.Duration) {
	every := idle / 4
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			tables.Sweep(ctx, now, idle)
		}
	}
}
