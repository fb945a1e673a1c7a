package usecase

import (
	"errors"
	"log/slog"
	"time"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/metrics"
)

// Observer receives pipeline progress events.
type Observer interface {
	RunStarted(run *entity.Run)
	SourceExtracted(source entity.Source, count int, elapsed time.Duration)
	SourceFailed(source entity.Source, err error)
	PlateChecked(l *entity.Listing, elapsed time.Duration)
	ValuationSkipped(l *entity.Listing)
	Valued(l *entity.Listing, err error, elapsed time.Duration)
	RunFinished(run *entity.Run)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RunStarted(*entity.Run)                            {}
func (NopObserver) SourceExtracted(entity.Source, int, time.Duration) {}
func (NopObserver) SourceFailed(entity.Source, error)                 {}
func (NopObserver) PlateChecked(*entity.Listing, time.Duration)       {}
func (NopObserver) ValuationSkipped(*entity.Listing)                  {}
func (NopObserver) Valued(*entity.Listing, error, time.Duration)      {}
func (NopObserver) RunFinished(*entity.Run)                           {}

type metricsObserver struct {
	logger *slog.Logger
}

// NewMetricsObserver logs pipeline events and records them in Prometheus.
// metrics.Init must have been called.
func NewMetricsObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &metricsObserver{logger: logger}
}

func (o *metricsObserver) RunStarted(run *entity.Run) {
	metrics.RunInProgress.Set(1)
	o.logger.Info("Valuation run started", "run_id", run.ID)
}

func (o *metricsObserver) SourceExtracted(source entity.Source, count int, elapsed time.Duration) {
	metrics.ListingsExtracted.WithLabelValues(string(source)).Add(float64(count))
	metrics.StageDuration.WithLabelValues("scrape").Observe(elapsed.Seconds())
	o.logger.Info("Source scraped", "source", source, "listings", count, "duration_ms", elapsed.Milliseconds())
}

func (o *metricsObserver) SourceFailed(source entity.Source, err error) {
	errorType := "unknown"
	switch {
	case errors.Is(err, repository.ErrPageTimeout):
		errorType = "timeout"
	case errors.Is(err, repository.ErrNavigationFailed):
		errorType = "navigation"
	case errors.Is(err, repository.ErrSourceUnavailable):
		errorType = "unavailable"
	}
	metrics.SourceFailures.WithLabelValues(string(source), errorType).Inc()
	o.logger.Error("Source contributed no listings", "source", source, "error_type", errorType, "error", err)
}

func (o *metricsObserver) PlateChecked(l *entity.Listing, elapsed time.Duration) {
	result := "not_detected"
	if l.HasPlate() {
		result = "detected"
	}
	metrics.PlatesTotal.WithLabelValues(result).Inc()
	metrics.StageDuration.WithLabelValues("plate").Observe(elapsed.Seconds())
	o.logger.Info("Plate checked", "title", l.Title, "plate", l.DetectedPlate)
}

func (o *metricsObserver) ValuationSkipped(l *entity.Listing) {
	metrics.ValuationsTotal.WithLabelValues("skipped").Inc()
	o.logger.Info("Valuation skipped", "title", l.Title, "plate", l.DetectedPlate, "mileage", l.Mileage)
}

func (o *metricsObserver) Valued(l *entity.Listing, err error, elapsed time.Duration) {
	status := "valued"
	switch l.Valuation {
	case entity.ValuationFailed:
		status = "failed"
	case entity.ValuationError:
		status = "error"
	}
	metrics.ValuationsTotal.WithLabelValues(status).Inc()
	metrics.StageDuration.WithLabelValues("valuation").Observe(elapsed.Seconds())
	if err != nil {
		o.logger.Warn("Valuation unsuccessful", "title", l.Title, "plate", l.DetectedPlate, "status", l.Valuation, "error", err)
		return
	}
	o.logger.Info("Valuation recorded", "title", l.Title, "plate", l.DetectedPlate, "valuation", l.Valuation)
}

func (o *metricsObserver) RunFinished(run *entity.Run) {
	metrics.RunInProgress.Set(0)
	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	s := run.Summary()
	o.logger.Info("Valuation run finished",
		"run_id", run.ID,
		"status", run.Status,
		"total_cars", s.TotalCars,
		"plates_detected", s.PlatesDetected,
		"valuations_obtained", s.ValuationsObtained,
	)
}
