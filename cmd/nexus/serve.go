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

	"github.com/spf13/cobra"

	"github.com/mweinbach/agent-coworker-sub008/internal/mcp"
	"github.com/mweinbach/agent-coworker-sub008/internal/server"
)

// buildServeCmd creates the "serve" command that starts the session
// server: the websocket control plane plus a health endpoint.
// Grounded on the teacher's runServe (cmd/nexus/handlers_serve.go,
// pre-rewrite): config load, signal-based graceful shutdown with a bounded
// drain window. Trimmed to this repo's single HTTP listener — no separate
// gRPC port, no channel adapters to start.
func buildServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent session server",
		Long: `Start the local coworker agent session server.

The server exposes a websocket control plane for creating sessions, sending
messages, and resolving human-in-the-loop ask/approval requests, plus a
health endpoint at /healthz.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded", "config", configPath, "addr", cfg.Server.Addr)

	resolver, err := newCredentialResolver(cfg, logger)
	if err != nil {
		return fmt.Errorf("init credential resolver: %w", err)
	}

	mcpManager := mcp.NewManager(&cfg.MCP, logger)
	defer mcpManager.ReleaseAll()

	srv := server.New(server.Config{
		Providers:   newProviderFactory(cfg, resolver),
		BuildTools:  newToolBuilder(mcpManager, logger),
		TurnOptions: cfg.turnOptions(),
		AuthToken:   cfg.Auth.Token,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	mux.HandleFunc("/healthz", srv.HealthHandler())

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("session server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("session server stopped gracefully")
	return nil
}
