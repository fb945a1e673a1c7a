package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run is one end-to-end pass over every configured source.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Listings   []*Listing `json:"cars"`
	// SourceErrors holds the failure reason of each source that contributed nothing.
	SourceErrors map[Source]string `json:"source_errors,omitempty"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary holds the headline counts reported for a run.
type RunSummary struct {
	RunID              string         `json:"run_id"`
	Timestamp          time.Time      `json:"timestamp"`
	Status             RunStatus      `json:"status"`
	TotalCars          int            `json:"total_cars"`
	Sources            map[Source]int `json:"sources"`
	PlatesDetected     int            `json:"plates_detected"`
	ValuationsObtained int            `json:"valuations_obtained"`
}

// NewRun starts a run with a fresh identifier.
func NewRun(now time.Time) *Run {
	return &Run{
		ID:           uuid.NewString(),
		StartedAt:    now,
		Status:       RunStatusRunning,
		SourceErrors: make(map[Source]string),
	}
}

// Finish stamps the run as done. A non-nil err marks it failed.
func (r *Run) Finish(now time.Time, err error) {
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}

// Summary computes the report counts for the run.
func (r *Run) Summary() RunSummary {
	s := RunSummary{
		RunID:     r.ID,
		Timestamp: r.StartedAt,
		Status:    r.Status,
		TotalCars: len(r.Listings),
		Sources:   make(map[Source]int),
	}
	for _, l := range r.Listings {
		s.Sources[l.Source]++
		if l.HasPlate() {
			s.PlatesDetected++
		}
		if l.HasValuation() {
			s.ValuationsObtained++
		}
	}
	return s
}

// MaxImageCount returns the largest image count of any listing in the run.
func (r *Run) MaxImageCount() int {
	max := 0
	for _, l := range r.Listings {
		if len(l.Images) > max {
			max = len(l.Images)
		}
	}
	return max
}
