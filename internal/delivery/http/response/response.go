package response

import (
	"time"

	"github.com/user/valuation-service/internal/entity"
)

type StartRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunResponse is a DTO for a run, mirroring entity.Run with its summary counts inlined.
type RunResponse struct {
	ID                 string                   `json:"id"`
	Status             entity.RunStatus         `json:"status"` // "running", "completed", "failed"
	StartedAt          time.Time                `json:"started_at"`
	FinishedAt         *time.Time               `json:"finished_at,omitempty"`
	Error              string                   `json:"error,omitempty"`
	TotalCars          int                      `json:"total_cars"`
	Sources            map[entity.Source]int    `json:"sources"`
	PlatesDetected     int                      `json:"plates_detected"`
	ValuationsObtained int                      `json:"valuations_obtained"`
	SourceErrors       map[entity.Source]string `json:"source_errors,omitempty"`
	Cars               []*entity.Listing        `json:"cars,omitempty"`
}

// NewRunResponse converts run. withCars controls whether the listings are included.
func NewRunResponse(run *entity.Run, withCars bool) RunResponse {
	s := run.Summary()
	resp := RunResponse{
		ID:                 run.ID,
		Status:             run.Status,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
		Error:              run.Error,
		TotalCars:          s.TotalCars,
		Sources:            s.Sources,
		PlatesDetected:     s.PlatesDetected,
		ValuationsObtained: s.ValuationsObtained,
		SourceErrors:       run.SourceErrors,
	}
	if withCars {
		resp.Cars = run.Listings
	}
	return resp
}
