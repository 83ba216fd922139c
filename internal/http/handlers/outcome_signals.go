package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// signalPublisher enqueues outcome signals for asynchronous processing.
// Satisfied by outcome.Publisher.
type signalPublisher interface {
	PublishView(ctx context.Context, ref outcome.Ref, observedAt time.Time) error
	PublishAction(ctx context.Context, ref outcome.Ref, action outcome.ActionType, observedAt time.Time) error
	PublishCompleted(ctx context.Context, ref outcome.Ref, completed bool) error
	PublishHealthScore(ctx context.Context, ref outcome.Ref, score float64) error
	PublishFeedback(ctx context.Context, ref outcome.Ref, feedback string) error
}

// OutcomeSignalHandler accepts view/action/completion/feedback reports from
// patient devices and hands them to the outcome queue. Signals are applied
// asynchronously, so every accepted request answers 202.
type OutcomeSignalHandler struct {
	signals signalPublisher
	logger  *logging.Logger
	now     func() time.Time
}

// NewOutcomeSignalHandler creates a new outcome signal handler.
func NewOutcomeSignalHandler(signals signalPublisher, logger *logging.Logger) *OutcomeSignalHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OutcomeSignalHandler{signals: signals, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Viewed records that the patient saw the nudge.
// POST /nudges/{nudgeID}/viewed
func (h *OutcomeSignalHandler) Viewed(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.nudgeRef(w, r)
	if !ok {
		return
	}
	if err := h.signals.PublishView(r.Context(), ref, h.now()); err != nil {
		h.publishError(w, "view", err)
		return
	}
	writeAccepted(w)
}

type actionRequest struct {
	ActionType string `json:"action_type"`
}

var validActions = map[outcome.ActionType]struct{}{
	outcome.ActionClicked:    {},
	outcome.ActionMarkedDone: {},
	outcome.ActionDismissed:  {},
	outcome.ActionIgnored:    {},
}

// Action records what the patient did with the nudge.
// POST /nudges/{nudgeID}/action
func (h *OutcomeSignalHandler) Action(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.nudgeRef(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	action := outcome.ActionType(req.ActionType)
	if _, known := validActions[action]; !known {
		http.Error(w, "unknown action_type", http.StatusBadRequest)
		return
	}
	if err := h.signals.PublishAction(r.Context(), ref, action, h.now()); err != nil {
		h.publishError(w, "action", err)
		return
	}
	writeAccepted(w)
}

type completedRequest struct {
	Completed bool `json:"completed"`
}

// Completed records whether the patient followed through on the nudge's
// intended action.
// POST /nudges/{nudgeID}/completed
func (h *OutcomeSignalHandler) Completed(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.nudgeRef(w, r)
	if !ok {
		return
	}
	var req completedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.signals.PublishCompleted(r.Context(), ref, req.Completed); err != nil {
		h.publishError(w, "completed", err)
		return
	}
	writeAccepted(w)
}

type healthScoreRequest struct {
	HealthScore float64 `json:"health_score"`
}

// HealthScore records the patient's health score observed after the nudge.
// POST /nudges/{nudgeID}/health-score
func (h *OutcomeSignalHandler) HealthScore(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.nudgeRef(w, r)
	if !ok {
		return
	}
	var req healthScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.signals.PublishHealthScore(r.Context(), ref, req.HealthScore); err != nil {
		h.publishError(w, "health score", err)
		return
	}
	writeAccepted(w)
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// Feedback records free-text patient feedback on the nudge.
// POST /nudges/{nudgeID}/feedback
func (h *OutcomeSignalHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.nudgeRef(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Feedback == "" {
		http.Error(w, "missing feedback", http.StatusBadRequest)
		return
	}
	if err := h.signals.PublishFeedback(r.Context(), ref, req.Feedback); err != nil {
		h.publishError(w, "feedback", err)
		return
	}
	writeAccepted(w)
}

func (h *OutcomeSignalHandler) nudgeRef(w http.ResponseWriter, r *http.Request) (outcome.Ref, bool) {
	raw := chi.URLParam(r, "nudgeID")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid nudgeID", http.StatusBadRequest)
		return outcome.Ref{}, false
	}
	return outcome.Ref{NudgeID: id}, true
}

func (h *OutcomeSignalHandler) publishError(w http.ResponseWriter, kind string, err error) {
	h.logger.Error("failed to enqueue outcome signal", "kind", kind, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
