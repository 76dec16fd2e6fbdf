package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mindmirror/mindmirror/internal/app"
	"github.com/mindmirror/mindmirror/internal/config"
)

// runServe initializes the engine and blocks until interrupted.
// Front ends integrate through the coordinator; serve keeps the
// dispatcher and pool alive for them.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting engine", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	logger.Info("engine ready",
		"model", cfg.ModelName,
		"min_evidence_chars", cfg.MinEvidenceChars,
		"cache_backend", cfg.CacheBackend,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
