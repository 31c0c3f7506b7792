package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/pkg/logger"
)

// RunHistory reads recorded runs (audit.Repository)
type RunHistory interface {
	ListRuns(ctx context.Context, factor string, limit int) ([]audit.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*audit.RunRecord, error)
}

// RunHandler handles run history endpoints
type RunHandler struct {
	history RunHistory
	logger  *logger.Logger
}

// NewRunHandler creates a new run history handler
func NewRunHandler(history RunHistory, log *logger.Logger) *RunHandler {
	return &RunHandler{history: history, logger: log}
}

// ListRuns returns recorded runs, newest first
// GET /api/v1/backtests/runs?factor=size&limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	factor := r.URL.Query().Get("factor")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), factor, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	if runs == nil {
		runs = []audit.RunRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns one recorded run
// GET /api/v1/backtests/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	run, err := h.history.GetRun(r.Context(), runID)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get run")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, run)
}
