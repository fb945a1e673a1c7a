package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/repository"
)

// Schema creates the tables used by RunRepoImpl.
const Schema = `
CREATE TABLE IF NOT EXISTS valuation_runs (
	id            UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	source_errors JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS valuation_listings (
	run_id         UUID NOT NULL REFERENCES valuation_runs(id) ON DELETE CASCADE,
	position       INT NOT NULL,
	source         TEXT NOT NULL,
	title          TEXT NOT NULL,
	price          TEXT NOT NULL,
	link           TEXT NOT NULL DEFAULT '',
	year           TEXT NOT NULL DEFAULT '',
	mileage        TEXT NOT NULL DEFAULT '',
	transmission   TEXT NOT NULL DEFAULT '',
	fuel_type      TEXT NOT NULL DEFAULT '',
	distance       TEXT NOT NULL DEFAULT '',
	images         JSONB NOT NULL DEFAULT '[]',
	detected_plate TEXT NOT NULL DEFAULT '',
	valuation      TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS valuation_runs_started_at_idx ON valuation_runs (started_at DESC);
`

// RunRepoImpl provides a concrete implementation for the RunRepository interface using PostgreSQL.
type RunRepoImpl struct {
	db *pgxpool.Pool
}

// NewRunRepo creates a new instance of RunRepoImpl.
func NewRunRepo(db *pgxpool.Pool) *RunRepoImpl {
	return &RunRepoImpl{db: db}
}

// EnsureSchema creates the run tables when they do not exist yet.
func (r *RunRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

// Save upserts the run row and replaces its listings in a single transaction.
func (r *RunRepoImpl) Save(ctx context.Context, run *entity.Run) error {
	sourceErrors, err := json.Marshal(run.SourceErrors)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO valuation_runs (id, started_at, finished_at, status, error, source_errors)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			source_errors = EXCLUDED.source_errors;
	`
	if _, err := tx.Exec(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Status,
		run.Error,
		sourceErrors,
	); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM valuation_listings WHERE run_id = $1;`, run.ID); err != nil {
		return fmt.Errorf("clear listings: %w", err)
	}

	batch := &pgx.Batch{}
	for i, l := range run.Listings {
		images, err := json.Marshal(l.Images)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO valuation_listings (run_id, position, source, title, price, link, year, mileage,
				transmission, fuel_type, distance, images, detected_plate, valuation, stage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);`,
			run.ID, i, l.Source, l.Title, l.Price, l.Link, l.Year, l.Mileage,
			l.Transmission, l.FuelType, l.Distance, images, l.DetectedPlate, l.Valuation, l.Stage,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FindByID retrieves a run and its listings in their original order.
func (r *RunRepoImpl) FindByID(ctx context.Context, id string) (*entity.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrRunNotFound
	}
	query := `
		SELECT id::text, started_at, finished_at, status, error, source_errors
		FROM valuation_runs
		WHERE id = $1;
	`
	return r.load(ctx, r.db.QueryRow(ctx, query, id))
}

// Latest retrieves the most recently started run.
func (r *RunRepoImpl) Latest(ctx context.Context) (*entity.Run, error) {
	query := `
		SELECT id::text, started_at, finished_at, status, error, source_errors
		FROM valuation_runs
		ORDER BY started_at DESC
		LIMIT 1;
	`
	return r.load(ctx, r.db.QueryRow(ctx, query))
}

func (r *RunRepoImpl) load(ctx context.Context, row pgx.Row) (*entity.Run, error) {
	var run entity.Run
	var sourceErrors []byte
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.Error,
		&sourceErrors,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sourceErrors, &run.SourceErrors); err != nil {
		return nil, err
	}
	if run.SourceErrors == nil {
		run.SourceErrors = map[entity.Source]string{}
	}

	listings, err := r.listings(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Listings = listings
	return &run, nil
}

func (r *RunRepoImpl) listings(ctx context.Context, runID string) ([]*entity.Listing, error) {
	query := `
		SELECT source, title, price, link, year, mileage, transmission, fuel_type, distance,
			images, detected_plate, valuation, stage
		FROM valuation_listings
		WHERE run_id = $1
		ORDER BY position ASC;
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*entity.Listing
	for rows.Next() {
		var l entity.Listing
		var images []byte
		if err := rows.Scan(
			&l.Source,
			&l.Title,
			&l.Price,
			&l.Link,
			&l.Year,
			&l.Mileage,
			&l.Transmission,
			&l.FuelType,
			&l.Distance,
			&images,
			&l.DetectedPlate,
			&l.Valuation,
			&l.Stage,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(images, &l.Images); err != nil {
			return nil, err
		}
		listings = append(listings, &l)
	}

	return listings, rows.Err()
}
