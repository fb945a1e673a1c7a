package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/repository"
)

var (
	ErrRunInProgress = errors.New("a valuation run is already in progress")
)

// RunManager starts background pipeline runs and reports on them.
type RunManager interface {
	Start(ctx context.Context) (string, error)
	Latest(ctx context.Context) (*entity.RunSummary, error)
	Get(ctx context.Context, id string) (*entity.Run, error)
	Shutdown(ctx context.Context) error
}

type activeRun struct {
	id        string
	startedAt time.Time
	cancel    context.CancelFunc
}

type runManagerUseCase struct {
	pipeline Pipeline
	runs     repository.RunRepository
	timeout  time.Duration

	mu     sync.Mutex
	active *activeRun
	last   *entity.Run
	wg     sync.WaitGroup
}

// NewRunManager creates a RunManager. runs may be nil, in which case only the
// most recent run in memory can be looked up.
func NewRunManager(pipeline Pipeline, runs repository.RunRepository, timeout time.Duration) RunManager {
	return &runManagerUseCase{
		pipeline: pipeline,
		runs:     runs,
		timeout:  timeout,
	}
}

// Start launches a run in the background. Only one run executes at a time
// because every run drives the same browser.
func (uc *runManagerUseCase) Start(ctx context.Context) (string, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.active != nil {
		return uc.active.id, ErrRunInProgress
	}

	run := entity.NewRun(time.Now())
	// The run outlives the request that started it.
	base := context.WithoutCancel(ctx)
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if uc.timeout > 0 {
		runCtx, cancel = context.WithTimeout(base, uc.timeout)
	} else {
		runCtx, cancel = context.WithCancel(base)
	}
	uc.active = &activeRun{id: run.ID, startedAt: run.StartedAt, cancel: cancel}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer cancel()

		if err := uc.pipeline.Run(runCtx, run); err != nil {
			slog.Error("Valuation run ended with errors", "run_id", run.ID, "error", err)
		}

		uc.mu.Lock()
		uc.active = nil
		uc.last = run
		uc.mu.Unlock()
	}()

	return run.ID, nil
}

func (uc *runManagerUseCase) Latest(ctx context.Context) (*entity.RunSummary, error) {
	uc.mu.Lock()
	if uc.active != nil {
		s := &entity.RunSummary{
			RunID:     uc.active.id,
			Timestamp: uc.active.startedAt,
			Status:    entity.RunStatusRunning,
		}
		uc.mu.Unlock()
		return s, nil
	}
	last := uc.last
	uc.mu.Unlock()

	if last != nil {
		s := last.Summary()
		return &s, nil
	}
	if uc.runs == nil {
		return nil, repository.ErrRunNotFound
	}
	run, err := uc.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	s := run.Summary()
	return &s, nil
}

func (uc *runManagerUseCase) Get(ctx context.Context, id string) (*entity.Run, error) {
	uc.mu.Lock()
	if uc.active != nil && uc.active.id == id {
		run := &entity.Run{ID: id, StartedAt: uc.active.startedAt, Status: entity.RunStatusRunning}
		uc.mu.Unlock()
		return run, nil
	}
	last := uc.last
	uc.mu.Unlock()

	if last != nil && last.ID == id {
		return last, nil
	}
	if uc.runs == nil {
		return nil, repository.ErrRunNotFound
	}
	return uc.runs.FindByID(ctx, id)
}

// Shutdown cancels the active run and waits for it to publish its results.
func (uc *runManagerUseCase) Shutdown(ctx context.Context) error {
	uc.mu.Lock()
	if uc.active != nil {
		uc.active.cancel()
	}
	uc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
