package file_report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/repository"
)

const filePrefix = "car_valuations_results"

// Writer saves JSON and CSV reports under a directory, one timestamped pair per run.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a report writer for dir. The directory is created on first use.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) Name() string { return "files" }

// Paths returns the JSON and CSV file paths used for run.
func (w *Writer) Paths(run *entity.Run) (jsonPath, csvPath string) {
	stamp := run.StartedAt.Format("20060102_150405")
	base := filepath.Join(w.dir, fmt.Sprintf("%s_%s", filePrefix, stamp))
	return base + ".json", base + ".csv"
}

// Publish writes both report files for run.
func (w *Writer) Publish(ctx context.Context, run *entity.Run) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jsonPath, csvPath := w.Paths(run)
	if err := writeFile(jsonPath, func(f io.Writer) error { return EncodeJSON(f, run) }); err != nil {
		return err
	}
	if len(run.Listings) == 0 {
		w.logger.Info("No results to save to CSV", "run_id", run.ID)
	} else if err := writeFile(csvPath, func(f io.Writer) error { return EncodeCSV(f, run) }); err != nil {
		return err
	}

	s := run.Summary()
	w.logger.Info("Reports saved",
		"json", jsonPath,
		"csv", csvPath,
		"total_cars", s.TotalCars,
		"plates_detected", s.PlatesDetected,
		"valuations_obtained", s.ValuationsObtained,
		"elapsed", time.Since(run.StartedAt).Round(time.Second).String(),
	)
	return nil
}

func writeFile(path string, encode func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	if err := encode(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ repository.ReportSink = (*Writer)(nil)
