package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/extractor"
	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/internal/valuation"
)

const twoCarPage = `<html><body>
<article class="product-card"><h3>Ford Fiesta 1.25 Zetec 5dr</h3><p>£1,995</p><p>45,000 miles</p>
  <a href="/car-details/1">View</a><img src="https://img.example.com/1.jpg"></article>
<article class="product-card"><h3>Toyota Yaris 1.0 VVT-i</h3><p>£1,500</p><p>Manual</p>
  <img src="https://img.example.com/2.jpg"></article>
</body></html>`

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.html, f.err
}

type fakeDetailImages struct {
	images map[string][]string
}

func (f *fakeDetailImages) DetailImages(ctx context.Context, url string) ([]string, error) {
	imgs, ok := f.images[url]
	if !ok {
		return nil, errors.New("detail page not found")
	}
	return imgs, nil
}

// fakePlates maps an image URL to the plate visible in it.
type fakePlates struct {
	plates map[string]string
	seen   [][]string
}

func (f *fakePlates) Recognize(ctx context.Context, imageURLs []string) (string, bool) {
	f.seen = append(f.seen, imageURLs)
	for _, u := range imageURLs {
		if p, ok := f.plates[u]; ok {
			return p, true
		}
	}
	return "", false
}

type quoteCall struct {
	plate   string
	mileage int
}

type fakeValuer struct {
	fragments []string
	err       error
	calls     []quoteCall
}

func (f *fakeValuer) QuoteFragments(ctx context.Context, plate string, mileage int) ([]string, error) {
	f.calls = append(f.calls, quoteCall{plate, mileage})
	return f.fragments, f.err
}

type memoryValuations struct {
	entries map[string]string
}

func (m *memoryValuations) key(plate string, mileage int) string {
	return fmt.Sprintf("%s:%d", plate, mileage)
}

func (m *memoryValuations) GetValuation(ctx context.Context, plate string, mileage int) (string, error) {
	v, ok := m.entries[m.key(plate, mileage)]
	if !ok {
		return "", repository.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryValuations) SetValuation(ctx context.Context, plate string, mileage int, v string, ttl time.Duration) error {
	m.entries[m.key(plate, mileage)] = v
	return nil
}

type fakeSink struct {
	name string
	err  error
	runs []*entity.Run
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(ctx context.Context, run *entity.Run) error {
	f.runs = append(f.runs, run)
	return f.err
}

type pipelineFixture struct {
	fetcher *fakeFetcher
	plates  *fakePlates
	valuer  *fakeValuer
	sink    *fakeSink
	deps    PipelineDeps
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		fetcher: &fakeFetcher{html: twoCarPage},
		plates: &fakePlates{plates: map[string]string{
			"https://img.example.com/1.jpg": "AB12CDE",
			"https://img.example.com/2.jpg": "XY61ZZZ",
		}},
		valuer: &fakeValuer{fragments: []string{"£250 fee", "£8,450", "£12"}},
		sink:   &fakeSink{name: "memory"},
	}
	f.deps = PipelineDeps{
		Sources: []Source{{
			Profile: extractor.AutoTraderProfile(4),
			URL:     "https://www.autotrader.co.uk/car-search",
			Fetcher: f.fetcher,
		}},
		Extractor: extractor.New(extractor.WithLogger(discardLogger)),
		Plates:    f.plates,
		Valuer:    f.valuer,
		Resolver:  valuation.NewResolver(),
		Sinks:     []repository.ReportSink{f.sink},
		Logger:    discardLogger,
	}
	return f
}

var testSettings = PipelineSettings{MaxListingsPerSource: 15, MaxImages: 4}

func runPipeline(t *testing.T, deps PipelineDeps) *entity.Run {
	t.Helper()
	run := entity.NewRun(time.Now())
	if err := NewPipeline(deps, testSettings).Run(context.Background(), run); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return run
}

func TestPipelineValuesListingWithPlateAndMileage(t *testing.T) {
	f := newPipelineFixture()
	run := runPipeline(t, f.deps)

	if len(run.Listings) != 2 {
		t.Fatalf("got %d listings; want 2", len(run.Listings))
	}
	fiesta, yaris := run.Listings[0], run.Listings[1]

	if fiesta.Stage != entity.StageValued || fiesta.Valuation != "£8,450" || fiesta.DetectedPlate != "AB12CDE" {
		t.Errorf("fiesta = stage %q, plate %q, valuation %q; want valued AB12CDE £8,450",
			fiesta.Stage, fiesta.DetectedPlate, fiesta.Valuation)
	}
	if yaris.Valuation != entity.ValuationNoPlateMileage || yaris.Stage != entity.StagePlateChecked {
		t.Errorf("yaris = stage %q, valuation %q; want plate_checked, No plate/mileage", yaris.Stage, yaris.Valuation)
	}

	want := []quoteCall{{"AB12CDE", 45000}}
	if !reflect.DeepEqual(f.valuer.calls, want) {
		t.Errorf("valuation calls = %v; want %v (no call for the listing without mileage)", f.valuer.calls, want)
	}
	if run.Status != entity.RunStatusCompleted || run.FinishedAt == nil {
		t.Errorf("run status = %q", run.Status)
	}
	if len(f.sink.runs) != 1 || f.sink.runs[0] != run {
		t.Error("sink did not receive the finished run")
	}
}

func TestPipelineNoPlateSkipsValuation(t *testing.T) {
	f := newPipelineFixture()
	f.plates.plates = map[string]string{}
	run := runPipeline(t, f.deps)

	for _, l := range run.Listings {
		if l.DetectedPlate != entity.PlateNotDetected {
			t.Errorf("%s plate = %q; want %q", l.Title, l.DetectedPlate, entity.PlateNotDetected)
		}
		if l.Valuation != entity.ValuationNoPlateMileage {
			t.Errorf("%s valuation = %q; want %q", l.Title, l.Valuation, entity.ValuationNoPlateMileage)
		}
	}
	if len(f.valuer.calls) != 0 {
		t.Errorf("valuation attempted %d times; want 0", len(f.valuer.calls))
	}
}

func TestPipelineValuationOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		err       error
		want      string
	}{
		{"resolved", []string{"£3,200"}, nil, "£3,200"},
		{"no plausible amount", []string{"£12"}, nil, entity.ValuationFailed},
		{"flow unavailable", nil, fmt.Errorf("%w: timeout", repository.ErrValuationUnavailable), entity.ValuationFailed},
		{"unexpected error", nil, errors.New("browser crashed"), entity.ValuationError},
	}
	for _, tt := range tests {
		f := newPipelineFixture()
		f.valuer.fragments, f.valuer.err = tt.fragments, tt.err
		run := runPipeline(t, f.deps)

		got := run.Listings[0]
		if got.Valuation != tt.want {
			t.Errorf("%s: valuation = %q; want %q", tt.name, got.Valuation, tt.want)
		}
		if got.Stage != entity.StageValued {
			t.Errorf("%s: stage = %q; want %q", tt.name, got.Stage, entity.StageValued)
		}
	}
}

func TestPipelineIsolatesFailedSource(t *testing.T) {
	f := newPipelineFixture()
	broken := &fakeFetcher{err: fmt.Errorf("%w: dns", repository.ErrNavigationFailed)}
	f.deps.Sources = append([]Source{{
		Profile: extractor.PistonHeadsProfile(4),
		URL:     "https://www.pistonheads.com/buy/search",
		Fetcher: broken,
	}}, f.deps.Sources...)

	run := runPipeline(t, f.deps)

	if len(run.Listings) != 2 {
		t.Errorf("got %d listings; want 2 from the healthy source", len(run.Listings))
	}
	if _, ok := run.SourceErrors[entity.SourcePistonHeads]; !ok {
		t.Errorf("SourceErrors = %v; want pistonheads entry", run.SourceErrors)
	}
	if run.Status != entity.RunStatusCompleted {
		t.Errorf("run status = %q; want completed", run.Status)
	}
}

func TestPipelineUsesValuationCache(t *testing.T) {
	f := newPipelineFixture()
	cache := &memoryValuations{entries: map[string]string{"AB12CDE:45000": "£7,000"}}
	f.deps.Valuations = cache
	run := runPipeline(t, f.deps)

	if run.Listings[0].Valuation != "£7,000" {
		t.Errorf("valuation = %q; want cached £7,000", run.Listings[0].Valuation)
	}
	if len(f.valuer.calls) != 0 {
		t.Errorf("valuer called %d times despite cache hit", len(f.valuer.calls))
	}
}

func TestPipelineStoresResolvedValuation(t *testing.T) {
	f := newPipelineFixture()
	cache := &memoryValuations{entries: map[string]string{}}
	f.deps.Valuations = cache
	runPipeline(t, f.deps)

	if cache.entries["AB12CDE:45000"] != "£8,450" {
		t.Errorf("cache = %v; want AB12CDE:45000 -> £8,450", cache.entries)
	}
}

func TestPipelineAddsDetailImages(t *testing.T) {
	f := newPipelineFixture()
	f.deps.Sources[0].DetailImages = &fakeDetailImages{images: map[string][]string{
		"https://www.autotrader.co.uk/car-details/1": {
			"https://img.example.com/1.jpg",
			"https://img.example.com/site-logo.png",
			"https://img.example.com/1b.jpg",
		},
	}}
	run := runPipeline(t, f.deps)

	want := []string{"https://img.example.com/1.jpg", "https://img.example.com/1b.jpg"}
	if !reflect.DeepEqual(run.Listings[0].Images, want) {
		t.Errorf("images = %v; want %v", run.Listings[0].Images, want)
	}
	if len(run.Listings[1].Images) != 1 {
		t.Errorf("listing without link images = %v", run.Listings[1].Images)
	}
}

func TestPipelineCapsImagesForPlateCheck(t *testing.T) {
	f := newPipelineFixture()
	f.deps.Sources[0].DetailImages = &fakeDetailImages{images: map[string][]string{
		"https://www.autotrader.co.uk/car-details/1": {
			"https://img.example.com/a.jpg", "https://img.example.com/b.jpg",
			"https://img.example.com/c.jpg", "https://img.example.com/d.jpg",
		},
	}}
	runPipeline(t, f.deps)

	if got := len(f.plates.seen[0]); got != 4 {
		t.Errorf("plate recognizer got %d images; want 4", got)
	}
}

func TestPipelineReturnsSinkErrors(t *testing.T) {
	f := newPipelineFixture()
	f.sink.err = errors.New("disk full")
	run := entity.NewRun(time.Now())

	err := NewPipeline(f.deps, testSettings).Run(context.Background(), run)
	if err == nil {
		t.Fatal("Run returned nil despite sink failure")
	}
	if run.Status != entity.RunStatusCompleted {
		t.Errorf("run status = %q; a publishing failure does not fail the run", run.Status)
	}
}

func TestPipelineCancelledRunStillPublishes(t *testing.T) {
	f := newPipelineFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := entity.NewRun(time.Now())

	err := NewPipeline(f.deps, testSettings).Run(ctx, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}
	if run.Status != entity.RunStatusFailed {
		t.Errorf("run status = %q; want failed", run.Status)
	}
	if len(f.sink.runs) != 1 {
		t.Error("cancelled run was not published")
	}
}

// interruptingPlates cancels the run on its first call, as a SIGINT would.
type interruptingPlates struct {
	cancel context.CancelFunc
}

func (p *interruptingPlates) Recognize(ctx context.Context, imageURLs []string) (string, bool) {
	p.cancel()
	return "", false
}

type interruptingValuer struct {
	cancel context.CancelFunc
	calls  int
}

func (v *interruptingValuer) QuoteFragments(ctx context.Context, plate string, mileage int) ([]string, error) {
	v.calls++
	v.cancel()
	return nil, ctx.Err()
}

func TestPipelineInterruptedDuringPlateCheck(t *testing.T) {
	f := newPipelineFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.deps.Plates = &interruptingPlates{cancel: cancel}
	run := entity.NewRun(time.Now())

	err := NewPipeline(f.deps, testSettings).Run(ctx, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}
	if len(f.valuer.calls) != 0 {
		t.Errorf("valuer called %d times after cancellation", len(f.valuer.calls))
	}
	if len(run.Listings) != 2 {
		t.Fatalf("got %d listings; want 2", len(run.Listings))
	}
	for _, l := range run.Listings {
		if l.Stage != entity.StageScraped {
			t.Errorf("%s: stage = %q; want scraped", l.Title, l.Stage)
		}
		if l.DetectedPlate != entity.NotProcessed || l.Valuation != entity.NotProcessed {
			t.Errorf("%s: plate/valuation = %q/%q; want %q for both", l.Title, l.DetectedPlate, l.Valuation, entity.NotProcessed)
		}
	}
	if got := run.Summary().PlatesDetected; got != 0 {
		t.Errorf("PlatesDetected = %d; want 0", got)
	}
}

func TestPipelineInterruptedDuringValuation(t *testing.T) {
	f := newPipelineFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	valuer := &interruptingValuer{cancel: cancel}
	f.deps.Valuer = valuer
	run := entity.NewRun(time.Now())

	if err := NewPipeline(f.deps, testSettings).Run(ctx, run); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}
	if valuer.calls != 1 {
		t.Errorf("valuer called %d times; want 1", valuer.calls)
	}

	fiesta, yaris := run.Listings[0], run.Listings[1]
	if fiesta.Stage != entity.StagePlateChecked || fiesta.DetectedPlate != "AB12CDE" || fiesta.Valuation != entity.NotProcessed {
		t.Errorf("fiesta = %s/%q/%q; want plate_checked/AB12CDE/%q", fiesta.Stage, fiesta.DetectedPlate, fiesta.Valuation, entity.NotProcessed)
	}
	if yaris.Stage != entity.StageScraped || yaris.DetectedPlate != entity.NotProcessed {
		t.Errorf("yaris = %s/%q; want scraped/%q", yaris.Stage, yaris.DetectedPlate, entity.NotProcessed)
	}
	if len(f.sink.runs) != 1 {
		t.Error("interrupted run was not published")
	}
}

// stallingSink blocks until its context is done.
type stallingSink struct{}

func (stallingSink) Name() string { return "stalling" }

func (stallingSink) Publish(ctx context.Context, run *entity.Run) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPipelineBoundsPublishing(t *testing.T) {
	f := newPipelineFixture()
	f.deps.Sinks = append(f.deps.Sinks, stallingSink{})
	settings := testSettings
	settings.PublishTimeout = 100 * time.Millisecond
	run := entity.NewRun(time.Now())

	start := time.Now()
	err := NewPipeline(f.deps, settings).Run(context.Background(), run)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v; want the stalled sink's deadline error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run took %v with a stalled sink", elapsed)
	}
	if len(f.sink.runs) != 1 {
		t.Error("healthy sink was not published to")
	}
}
