package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wolfman30/nudge-engine/internal/engine"
	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// learningMetricsSource summarizes the outcome ledger. Satisfied by
// outcome.Tracker.
type learningMetricsSource interface {
	LearningMetrics(ctx context.Context, windowDays int) (*outcome.Metrics, error)
}

// SystemHandler exposes engine configuration and learning metrics to
// operators.
type SystemHandler struct {
	cfg             engine.Config
	explorationRate float64
	metrics         learningMetricsSource
	logger          *logging.Logger
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(cfg engine.Config, explorationRate float64, metrics learningMetricsSource, logger *logging.Logger) *SystemHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SystemHandler{cfg: cfg, explorationRate: explorationRate, metrics: metrics, logger: logger}
}

// SystemResponse is the admin system overview payload.
type SystemResponse struct {
	NudgesEnabled         bool             `json:"nudges_enabled"`
	ExplorationRate       float64          `json:"exploration_rate"`
	MinHoursBetweenNudges int              `json:"min_hours_between_nudges"`
	MaxNudgesPerDay       int              `json:"max_nudges_per_day"`
	NudgeTTLHours         float64          `json:"nudge_ttl_hours"`
	Learning              *outcome.Metrics `json:"learning,omitempty"`
}

// GetSystem returns the current engine flags and the learning metrics over a
// trailing window (?window_days=N, default 30).
// GET /admin/system
func (h *SystemHandler) GetSystem(w http.ResponseWriter, r *http.Request) {
	windowDays := outcome.DefaultMetricsWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid window_days", http.StatusBadRequest)
			return
		}
		windowDays = parsed
	}

	resp := SystemResponse{
		NudgesEnabled:         h.cfg.Enabled,
		ExplorationRate:       h.explorationRate,
		MinHoursBetweenNudges: h.cfg.MinHoursBetweenNudges,
		MaxNudgesPerDay:       h.cfg.MaxNudgesPerDay,
		NudgeTTLHours:         h.cfg.NudgeTTL.Hours(),
	}

	learning, err := h.metrics.LearningMetrics(r.Context(), windowDays)
	if err != nil {
		h.logger.Error("failed to compute learning metrics", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp.Learning = learning

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode system response", "error", err)
	}
}
