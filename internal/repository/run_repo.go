package repository

import (
	"context"

	"github.com/user/valuation-service/internal/entity"
)

// RunRepository persists finished runs and their listings.
type RunRepository interface {
	// Save stores the run and all of its listings. Saving the same run twice replaces its listings.
	Save(ctx context.Context, run *entity.Run) error
	// FindByID returns ErrRunNotFound for unknown identifiers.
	FindByID(ctx context.Context, id string) (*entity.Run, error)
	// Latest returns the most recently started run, or ErrRunNotFound.
	Latest(ctx context.Context) (*entity.Run, error)
}

// ReportSink publishes a finished run (files, email).
type ReportSink interface {
	Name() string
	Publish(ctx context.Context, run *entity.Run) error
}
