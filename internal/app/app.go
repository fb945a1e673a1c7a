// Package app wires configuration into the pipeline and its adapters.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/user/valuation-service/internal/adapter/chromedp_browser"
	"github.com/user/valuation-service/internal/adapter/colly_fetcher"
	"github.com/user/valuation-service/internal/adapter/file_report"
	"github.com/user/valuation-service/internal/adapter/ocr_space"
	"github.com/user/valuation-service/internal/adapter/postgres"
	redis_adapter "github.com/user/valuation-service/internal/adapter/redis"
	"github.com/user/valuation-service/internal/adapter/smtp_mailer"
	"github.com/user/valuation-service/internal/extractor"
	"github.com/user/valuation-service/internal/plate"
	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/internal/usecase"
	"github.com/user/valuation-service/internal/valuation"
	"github.com/user/valuation-service/pkg/config"
	"github.com/user/valuation-service/pkg/utils"
)

// App holds the wired pipeline and the resources that must be released on exit.
type App struct {
	Pipeline usecase.Pipeline
	// Runs is nil when POSTGRES_URL is not configured.
	Runs repository.RunRepository

	closers []func()
}

// New connects the optional stores, starts the browser and builds the pipeline.
// metrics.Init must have been called.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	agents := utils.NewUserAgents()

	// --- Stores ---
	var (
		plateCache     repository.PlateCache
		valuationCache repository.ValuationCache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { rdb.Close() })
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("unable to connect to redis: %w", err)
		}
		plateCache = redis_adapter.NewPlateCache(rdb)
		valuationCache = redis_adapter.NewValuationCache(rdb)
		logger.Info("Redis connection established")
	}

	if cfg.PostgresURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		a.closers = append(a.closers, dbpool.Close)
		if err := dbpool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("unable to reach database: %w", err)
		}
		runRepo := postgres.NewRunRepo(dbpool)
		if err := runRepo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
		a.Runs = runRepo
		logger.Info("PostgreSQL connection pool established")
	}

	// --- Fetchers ---
	browser, err := chromedp_browser.NewBrowser(chromedp_browser.Options{
		Headless:        cfg.Headless,
		PageLoadTimeout: cfg.PageLoadTimeout(),
		UserAgents:      agents,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, browser.Close)

	static, err := colly_fetcher.NewFetcher(cfg.PageLoadTimeout(), agents, logger)
	if err != nil {
		return nil, err
	}

	// --- Enrichment ---
	recognizerOpts := []plate.Option{
		plate.WithRetry(cfg.OCRMaxAttempts, cfg.OCRRetryDelay()),
		plate.WithImageDelay(cfg.ImageDelay()),
		plate.WithLogger(logger),
	}
	if plateCache != nil {
		recognizerOpts = append(recognizerOpts, plate.WithCache(plateCache, cfg.CacheTTL()))
	}
	recognizer := plate.NewRecognizer(
		ocr_space.NewClient(cfg.OCREndpoint, cfg.OCRAPIKey, cfg.OCRRequestsPerMinute, logger),
		recognizerOpts...,
	)

	valuer := chromedp_browser.NewValuationFlow(browser, chromedp_browser.ValuationFlowConfig{
		HomeURL:  cfg.ValuationURL,
		Email:    cfg.ValuationEmail,
		Postcode: cfg.Postcode,
		Timeout:  cfg.ValuationTimeout(),
		Logger:   logger,
	})

	a.Pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Sources:    Sources(cfg, static, browser, browser),
		Extractor:  extractor.New(extractor.WithLogger(logger)),
		Plates:     recognizer,
		Valuer:     valuer,
		Resolver:   valuation.NewResolver(),
		Valuations: valuationCache,
		Runs:       a.Runs,
		Sinks:      Sinks(cfg, logger),
		Observer:   usecase.NewMetricsObserver(logger),
		Logger:     logger,
	}, usecase.PipelineSettings{
		MaxListingsPerSource: cfg.MaxListingsPerSource,
		MaxImages:            cfg.MaxImages,
		ListingDelay:         cfg.ListingDelay(),
		CacheTTL:             cfg.CacheTTL(),
		PublishTimeout:       cfg.PublishTimeout(),
	})

	ok = true
	return a, nil
}

// Sources lists the configured listing sites in processing order. PistonHeads
// renders on the server and is fetched statically; AutoTrader needs the browser.
// Sites with an empty URL are left out.
func Sources(cfg *config.Config, static, rendered repository.PageFetcher, details repository.DetailImageFetcher) []usecase.Source {
	var sources []usecase.Source
	if cfg.PistonHeadsURL != "" {
		sources = append(sources, usecase.Source{
			Profile: extractor.PistonHeadsProfile(cfg.MaxImages),
			URL:     cfg.PistonHeadsURL,
			Fetcher: static,
		})
	}
	if cfg.AutoTraderURL != "" {
		sources = append(sources, usecase.Source{
			Profile:      extractor.AutoTraderProfile(cfg.MaxImages),
			URL:          cfg.AutoTraderURL,
			Fetcher:      rendered,
			DetailImages: details,
		})
	}
	return sources
}

// Sinks returns the report file writer, plus the mailer when SMTP credentials are set.
func Sinks(cfg *config.Config, logger *slog.Logger) []repository.ReportSink {
	sinks := []repository.ReportSink{file_report.NewWriter(cfg.OutputDir, logger)}
	if cfg.EmailEnabled() {
		sinks = append(sinks, smtp_mailer.NewMailer(smtp_mailer.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Sender:    cfg.SenderEmail,
			Password:  cfg.SenderPassword,
			Recipient: cfg.RecipientEmail,
			Timeout:   cfg.SMTPTimeout(),
		}, logger))
	} else {
		logger.Warn("Email credentials not configured, report email disabled")
	}
	return sinks
}

// Close releases every resource opened by New, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
