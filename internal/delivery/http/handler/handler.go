package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/valuation-service/internal/delivery/http/request"
	"github.com/user/valuation-service/internal/delivery/http/response"
	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/internal/usecase"
)

type Handler struct {
	runs usecase.RunManager
}

func NewHandler(runs usecase.RunManager) *Handler {
	return &Handler{
		runs: runs,
	}
}

func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.runs.Start(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			h.writeJSON(w, http.StatusConflict, response.StartRunResponse{
				Status:  "conflict",
				Message: err.Error(),
				RunID:   runID,
			})
			return
		}
		slog.Error("Failed to start run", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.StartRunResponse{
		Status:  "success",
		Message: "Valuation run started",
		RunID:   runID,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runs.Latest(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			h.writeJSONError(w, "No runs recorded yet", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load latest run", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	view, err := request.ParseRunView(r)
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			h.writeJSONError(w, "Run not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load run", "run_id", id, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.NewRunResponse(run, view == request.RunViewFull))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
