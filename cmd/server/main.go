// Command server runs the pong-platform core: the actor engine, the
// durable Postgres-backed repositories, and the HTTP/WebSocket transport
// layer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/config"
	"github.com/lguibr/pongrt/internal/logging"
	"github.com/lguibr/pongrt/internal/session"
	"github.com/lguibr/pongrt/internal/store"
	"github.com/lguibr/pongrt/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Options{Development: os.Getenv("ENV") == "development"})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	matchRepo := store.NewPgMatchRepository(pool)
	tournRepo := store.NewPgTournamentRepository(pool)
	chatRepo := store.NewPgChatRepository(pool)
	blockRepo := store.NewPgBlockRepository(pool)
	statsRepo := store.NewPgStatsRepository(pool)

	// Session liveness is tracked by the auth service that issues tokens,
	// outside this core's trust boundary (spec's Session Gate only
	// verifies). MemStore stands in as the default liveness store until a
	// collaborating service is wired behind session.Store.
	sessionStore := session.NewMemStore()

	a := app.New(cfg, log, sessionStore, matchRepo, tournRepo, chatRepo, blockRepo, statsRepo)

	router := transport.NewRouter(a)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		log.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http shutdown error", "err", err)
	}
	a.Shutdown(10 * time.Second)
	return nil
}
