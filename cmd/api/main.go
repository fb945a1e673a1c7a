package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/valuation-service/internal/app"
	"github.com/user/valuation-service/internal/delivery/http/handler"
	"github.com/user/valuation-service/internal/delivery/http/router"
	"github.com/user/valuation-service/internal/usecase"
	"github.com/user/valuation-service/pkg/config"
	"github.com/user/valuation-service/pkg/logger"
	"github.com/user/valuation-service/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	// --- Pipeline ---
	ctx := context.Background()
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Use Cases ---
	runManager := usecase.NewRunManager(a.Pipeline, a.Runs, 0)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(runManager)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	// The active run is cancelled and still publishes its partial results.
	if err := runManager.Shutdown(shutdownCtx); err != nil {
		slog.Error("Active run did not stop in time", "error", err)
	}

	slog.Info("Server exiting")
}
