package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/nudge-engine/internal/engine"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// pipelineRunner is the handler's view of the decision engine.
type pipelineRunner interface {
	Run(ctx context.Context, patientID string, opts engine.Options) engine.Result
}

// NudgeRunHandler triggers decision pipeline runs over HTTP.
type NudgeRunHandler struct {
	engine pipelineRunner
	logger *logging.Logger
}

// NewNudgeRunHandler creates a new nudge run handler.
func NewNudgeRunHandler(runner pipelineRunner, logger *logging.Logger) *NudgeRunHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NudgeRunHandler{engine: runner, logger: logger}
}

// Run executes the pipeline for one patient.
// POST /patients/{patientID}/nudges/run
func (h *NudgeRunHandler) Run(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		http.Error(w, "missing patientID", http.StatusBadRequest)
		return
	}

	result := h.engine.Run(r.Context(), patientID, engine.Options{})
	writeRunResult(w, result)
}

type debugRunRequest struct {
	ForceExplore bool `json:"force_explore"`
}

// DebugRun executes the pipeline bypassing the enable flag, optionally
// forcing exploration. The response carries the full assessment and the
// ledger event with every candidate's score.
// POST /admin/patients/{patientID}/nudges/debug-run
func (h *NudgeRunHandler) DebugRun(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		http.Error(w, "missing patientID", http.StatusBadRequest)
		return
	}

	var req debugRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	h.logger.Info("debug run requested", "patient_id", patientID, "force_explore", req.ForceExplore)
	result := h.engine.Run(r.Context(), patientID, engine.Options{
		ForceRun:     true,
		ForceExplore: req.ForceExplore,
	})
	writeRunResult(w, result)
}

func writeRunResult(w http.ResponseWriter, result engine.Result) {
	status := http.StatusOK
	if result.Reason == engine.ReasonError {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
