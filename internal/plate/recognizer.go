// Package plate recovers UK registration plates from listing photographs via OCR.
package plate

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/retry"
)

// Recognizer runs OCR over a listing's images until one yields a plate.
type Recognizer struct {
	ocr        repository.OCRClient
	cache      repository.PlateCache
	cacheTTL   time.Duration
	policy     retry.Policy
	imageDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithRetry sets the per-image attempt ceiling and the fixed delay between attempts.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(r *Recognizer) {
		r.policy.MaxAttempts = maxAttempts
		r.policy.Delay = delay
	}
}

// WithImageDelay sets the pause between consecutive images.
func WithImageDelay(d time.Duration) Option {
	return func(r *Recognizer) { r.imageDelay = d }
}

// WithCache stores per-image results so repeat runs skip the OCR call.
func WithCache(c repository.PlateCache, ttl time.Duration) Option {
	return func(r *Recognizer) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithLogger sets the recognizer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.logger = l }
}

// NewRecognizer creates a Recognizer with three attempts per image and a one second retry delay.
func NewRecognizer(ocr repository.OCRClient, opts ...Option) *Recognizer {
	r := &Recognizer{
		ocr: ocr,
		policy: retry.Policy{
			MaxAttempts: 3,
			Delay:       time.Second,
			Retryable: func(err error) bool {
				return errors.Is(err, repository.ErrOCRProcessing)
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.Logger = r.logger
	return r
}

// Recognize returns the plate from the first image that yields one. Vector images
// are skipped. Provider errors are retried up to the attempt ceiling and then
// treated as "no plate" for that image; Recognize never returns an error.
func (r *Recognizer) Recognize(ctx context.Context, imageURLs []string) (string, bool) {
	for i, imageURL := range imageURLs {
		if IsVectorImage(imageURL) {
			r.logger.Debug("Skipping vector image", "image", imageURL)
			continue
		}
		if i > 0 {
			if err := retry.Sleep(ctx, r.imageDelay); err != nil {
				return "", false
			}
		}

		if plate, ok := r.cached(ctx, imageURL); ok {
			if plate != "" {
				return plate, true
			}
			continue
		}

		var text string
		err := r.policy.Do(ctx, "ocr", func(ctx context.Context) error {
			var err error
			text, err = r.ocr.RecognizeText(ctx, imageURL)
			return err
		})
		if err != nil {
			r.logger.Warn("OCR failed for image", "image", imageURL, "error", err)
			if ctx.Err() != nil {
				return "", false
			}
			continue
		}

		plate, found := Find(text)
		r.remember(ctx, imageURL, plate)
		if found {
			r.logger.Info("Plate detected", "plate", plate, "image", imageURL)
			return plate, true
		}
		r.logger.Debug("No plate pattern in OCR text", "image", imageURL)
	}
	return "", false
}

func (r *Recognizer) cached(ctx context.Context, imageURL string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	plate, err := r.cache.GetPlate(ctx, imageURL)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			r.logger.Warn("Plate cache lookup failed", "image", imageURL, "error", err)
		}
		return "", false
	}
	return plate, true
}

func (r *Recognizer) remember(ctx context.Context, imageURL, plate string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetPlate(ctx, imageURL, plate, r.cacheTTL); err != nil {
		r.logger.Warn("Failed to cache plate result", "image", imageURL, "error", err)
	}
}

// IsVectorImage reports whether u points at an SVG, which carries no raster text.
func IsVectorImage(u string) bool {
	lower := strings.ToLower(u)
	if strings.Contains(lower, "svg+xml") || strings.Contains(lower, "format=svg") {
		return true
	}
	if parsed, err := url.Parse(lower); err == nil {
		return strings.HasSuffix(parsed.Path, ".svg")
	}
	return strings.HasSuffix(lower, ".svg")
}
