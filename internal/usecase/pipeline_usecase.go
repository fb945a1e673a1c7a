package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/extractor"
	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/retry"
)

// Source is one listing site processed by the pipeline.
type Source struct {
	Profile extractor.Profile
	URL     string
	Fetcher repository.PageFetcher
	// DetailImages, when set, fetches extra photographs from each listing's detail page.
	DetailImages repository.DetailImageFetcher
}

// ListingExtractor turns a fetched page into records.
type ListingExtractor interface {
	ExtractHTML(htmlContent string, p extractor.Profile, limit int) ([]*entity.Listing, error)
}

// PlateRecognizer finds a plate in a listing's photographs.
type PlateRecognizer interface {
	Recognize(ctx context.Context, imageURLs []string) (string, bool)
}

// PriceResolver picks the valuation amount from result page fragments.
type PriceResolver interface {
	Resolve(fragments []string) (int, bool)
}

// PipelineSettings holds the pipeline's tuning knobs.
type PipelineSettings struct {
	MaxListingsPerSource int
	MaxImages            int
	ListingDelay         time.Duration
	CacheTTL             time.Duration
	PublishTimeout       time.Duration // bounds persistence and every sink; 0 for no bound
}

// PipelineDeps collects the pipeline's collaborators. Valuations, Runs and Sinks are optional.
type PipelineDeps struct {
	Sources    []Source
	Extractor  ListingExtractor
	Plates     PlateRecognizer
	Valuer     repository.ValuationProvider
	Resolver   PriceResolver
	Valuations repository.ValuationCache
	Runs       repository.RunRepository
	Sinks      []repository.ReportSink
	Observer   Observer
	Logger     *slog.Logger
}

// Pipeline scrapes every source and enriches each listing with a plate and a valuation.
type Pipeline interface {
	// Run fills run with listings and finishes it. Run must come from entity.NewRun.
	Run(ctx context.Context, run *entity.Run) error
}

type pipelineUseCase struct {
	deps     PipelineDeps
	settings PipelineSettings
	now      func() time.Time
}

// NewPipeline creates a new instance of the pipeline use case.
func NewPipeline(deps PipelineDeps, settings PipelineSettings) Pipeline {
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &pipelineUseCase{deps: deps, settings: settings, now: time.Now}
}

// Run processes sources and listings strictly one at a time. Source and listing
// failures degrade to sentinels; only cancellation and publishing failures are returned.
func (uc *pipelineUseCase) Run(ctx context.Context, run *entity.Run) error {
	uc.deps.Logger.Info("Starting valuation run", "run_id", run.ID, "sources", len(uc.deps.Sources))
	uc.deps.Observer.RunStarted(run)

	for _, src := range uc.deps.Sources {
		if ctx.Err() != nil {
			break
		}
		listings, err := uc.scrape(ctx, src)
		if err != nil {
			run.SourceErrors[src.Profile.Source] = err.Error()
			uc.deps.Observer.SourceFailed(src.Profile.Source, err)
			continue
		}
		run.Listings = append(run.Listings, listings...)
	}

	for i, l := range run.Listings {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := retry.Sleep(ctx, uc.settings.ListingDelay); err != nil {
				break
			}
		}
		uc.enrich(ctx, l)
	}

	runErr := ctx.Err()
	if runErr != nil {
		for _, l := range run.Listings {
			l.MarkInterrupted()
		}
	}
	run.Finish(uc.now(), runErr)
	uc.deps.Observer.RunFinished(run)

	// Publishing must still happen when the run was cancelled part-way.
	pubCtx := context.WithoutCancel(ctx)
	if uc.settings.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(pubCtx, uc.settings.PublishTimeout)
		defer cancel()
	}
	if err := uc.publish(pubCtx, run); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func (uc *pipelineUseCase) scrape(ctx context.Context, src Source) ([]*entity.Listing, error) {
	start := uc.now()
	html, err := src.Fetcher.FetchPage(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", repository.ErrSourceUnavailable, src.URL, err)
	}

	listings, err := uc.deps.Extractor.ExtractHTML(html, src.Profile, uc.settings.MaxListingsPerSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrSourceUnavailable, err)
	}

	if src.DetailImages != nil {
		for _, l := range listings {
			uc.addDetailImages(ctx, src, l)
		}
	}

	uc.deps.Observer.SourceExtracted(src.Profile.Source, len(listings), uc.now().Sub(start))
	return listings, nil
}

func (uc *pipelineUseCase) addDetailImages(ctx context.Context, src Source, l *entity.Listing) {
	if l.Link == "" || len(l.Images) >= uc.settings.MaxImages {
		return
	}
	images, err := src.DetailImages.DetailImages(ctx, l.Link)
	if err != nil {
		uc.deps.Logger.Warn("Failed to load detail page images", "link", l.Link, "error", err)
		return
	}
	if src.Profile.Images.Rewrite != nil {
		for i := range images {
			images[i] = src.Profile.Images.Rewrite(images[i])
		}
	}
	l.Images = extractor.FilterImages(append(l.Images, images...), uc.settings.MaxImages)
}

// enrich moves one listing through Scraped -> PlateChecked -> Valued.
func (uc *pipelineUseCase) enrich(ctx context.Context, l *entity.Listing) {
	images := l.Images
	if len(images) > uc.settings.MaxImages {
		images = images[:uc.settings.MaxImages]
	}

	start := uc.now()
	plate, _ := uc.deps.Plates.Recognize(ctx, images)
	if ctx.Err() != nil {
		// A cut-short recognition is not a "Not detected" result.
		return
	}
	if err := l.MarkPlateChecked(plate); err != nil {
		uc.deps.Logger.Error("Plate result rejected", "title", l.Title, "error", err)
		return
	}
	uc.deps.Observer.PlateChecked(l, uc.now().Sub(start))

	mileage, hasMileage := l.MileageValue()
	if !l.HasPlate() || !hasMileage {
		if err := l.SkipValuation(); err != nil {
			uc.deps.Logger.Error("Valuation skip rejected", "title", l.Title, "error", err)
			return
		}
		uc.deps.Observer.ValuationSkipped(l)
		return
	}

	start = uc.now()
	valuation, err := uc.value(ctx, l.DetectedPlate, mileage)
	if ctx.Err() != nil {
		return
	}
	if markErr := l.MarkValued(valuation); markErr != nil {
		uc.deps.Logger.Error("Valuation result rejected", "title", l.Title, "error", markErr)
		return
	}
	uc.deps.Observer.Valued(l, err, uc.now().Sub(start))
}

// value returns a formatted amount, "Failed" when the flow could not produce one,
// or "Error" for anything unexpected. The error is returned for reporting only.
func (uc *pipelineUseCase) value(ctx context.Context, plate string, mileage int) (string, error) {
	if v, ok := uc.cachedValuation(ctx, plate, mileage); ok {
		return v, nil
	}

	fragments, err := uc.deps.Valuer.QuoteFragments(ctx, plate, mileage)
	if err != nil {
		if errors.Is(err, repository.ErrValuationUnavailable) {
			return entity.ValuationFailed, err
		}
		return entity.ValuationError, err
	}

	amount, ok := uc.deps.Resolver.Resolve(fragments)
	if !ok {
		return entity.ValuationFailed, nil
	}
	valuation := entity.FormatPounds(amount)
	uc.storeValuation(ctx, plate, mileage, valuation)
	return valuation, nil
}

func (uc *pipelineUseCase) cachedValuation(ctx context.Context, plate string, mileage int) (string, bool) {
	if uc.deps.Valuations == nil {
		return "", false
	}
	v, err := uc.deps.Valuations.GetValuation(ctx, plate, mileage)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			uc.deps.Logger.Warn("Valuation cache lookup failed", "plate", plate, "error", err)
		}
		return "", false
	}
	return v, true
}

func (uc *pipelineUseCase) storeValuation(ctx context.Context, plate string, mileage int, valuation string) {
	if uc.deps.Valuations == nil {
		return
	}
	if err := uc.deps.Valuations.SetValuation(ctx, plate, mileage, valuation, uc.settings.CacheTTL); err != nil {
		uc.deps.Logger.Warn("Failed to cache valuation", "plate", plate, "error", err)
	}
}

func (uc *pipelineUseCase) publish(ctx context.Context, run *entity.Run) error {
	var errs []error
	if uc.deps.Runs != nil {
		if err := uc.deps.Runs.Save(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("failed to save run %s: %w", run.ID, err))
		}
	}
	for _, sink := range uc.deps.Sinks {
		if err := sink.Publish(ctx, run); err != nil {
			uc.deps.Logger.Error("Report sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
