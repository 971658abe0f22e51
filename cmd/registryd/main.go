// ABOUTME: Entry point for registryd, the broadcast content registry server
// ABOUTME: Wires config, storage, the session manager, HTTP API, and the sweeper

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbitcast/registry/internal/auth"
	"github.com/orbitcast/registry/internal/config"
	"github.com/orbitcast/registry/internal/content"
	"github.com/orbitcast/registry/internal/server"
	"github.com/orbitcast/registry/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// backgroundPoll is how often the background loop wakes up. The sweeper's
// own interval gating decides how often cleanup actually runs.
const backgroundPoll = 5 * time.Second

// getConfigPath returns the path to the registryd config file.
// Priority: REGISTRY_CONFIG env var > /etc/registryd/registry.yaml > ./registry.yaml
func getConfigPath() string {
	if envPath := os.Getenv("REGISTRY_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("/etc/registryd/registry.yaml"); err == nil {
		return "/etc/registryd/registry.yaml"
	}
	return "registry.yaml"
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "registryd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}

	setupLogging(cfg.Logging)
	logger := slog.Default()
	logger.Info("starting registryd", "version", version, "config", configPath)

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer sqlStore.Close()

	sessions := auth.NewManager(sqlStore, auth.NewChallengeStore(), auth.NewSessionStore(), auth.ManagerConfig{
		ChallengeDuration:      cfg.Auth.ChallengeDuration,
		DefaultSessionDuration: cfg.Auth.SessionDefaultDuration,
		MaxSessionDuration:     cfg.Auth.SessionMaxDuration,
	})
	sweeper := auth.NewSweeper(sessions, cfg.Auth.CleanupInterval)
	catalog := content.NewManager(cfg.Registry.RootPath, sqlStore)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.New(sessions, catalog).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx, backgroundPoll)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
