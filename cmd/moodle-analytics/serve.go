package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/moodle-analytics/internal/api"
	"github.com/terra-clan/moodle-analytics/internal/snapshots"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting moodle-analytics",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	a, err := newApp(initCtx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recorder *snapshots.Recorder
	if cfg.Snapshots.Interval > 0 && a.history != nil {
		recorder = snapshots.NewRecorder(a.service, a.history, cfg.Snapshots.Interval)
		recorder.Start(ctx)
		slog.Info("snapshot recorder started", "interval", cfg.Snapshots.Interval)
	}

	// Setup HTTP server
	server := api.NewServer(cfg.Server, a.service, a.registry, a.reporting, a.history)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down gracefully...")
	case err := <-serverErr:
		slog.Error("HTTP server error", "error", err)
		cancel()
		return err
	}

	// Cancel context to stop background workers
	cancel()
	if recorder != nil {
		<-recorder.Done()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("moodle-analytics stopped")
	return nil
}
