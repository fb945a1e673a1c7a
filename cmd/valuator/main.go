package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/valuation-service/internal/app"
	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/pkg/config"
	"github.com/user/valuation-service/pkg/logger"
	"github.com/user/valuation-service/pkg/metrics"
)

func main() {
	os.Exit(execute())
}

// execute returns the process exit code so deferred cleanup runs before exit.
func execute() int {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Could not load config", "error", err)
		return 1
	}

	// --- Logger ---
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("Could not open log file", "path", cfg.LogFile, "error", err)
			return 1
		}
		defer logFile.Close()
		out = io.MultiWriter(os.Stdout, logFile)
	}
	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger.Init(out, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// Credentials are checked before any browser or network work starts.
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}

	// --- Metrics ---
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return valuate(ctx, cfg)
}

func valuate(ctx context.Context, cfg *config.Config) int {
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialise", "error", err)
		return 1
	}
	defer a.Close()

	start := time.Now()
	r := entity.NewRun(start)
	err = a.Pipeline.Run(ctx, r)

	s := r.Summary()
	slog.Info("Valuation run completed",
		"run_id", r.ID,
		"status", r.Status,
		"total_cars", s.TotalCars,
		"sources", s.Sources,
		"plates_detected", s.PlatesDetected,
		"valuations_obtained", s.ValuationsObtained,
		"elapsed_seconds", time.Since(start).Seconds(),
	)

	switch {
	case errors.Is(err, context.Canceled):
		slog.Warn("Run interrupted, partial results were published")
		return 130
	case err != nil:
		slog.Error("Run finished with errors", "error", err)
		return 1
	case s.TotalCars == 0:
		slog.Error("No cars scraped")
		return 1
	}
	return 0
}
