package outcome

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/scoring"
)

// ActionType records what the patient did with a nudge.
type ActionType string

const (
	ActionClicked    ActionType = "clicked"
	ActionMarkedDone ActionType = "marked_done"
	ActionDismissed  ActionType = "dismissed"
	ActionIgnored    ActionType = "ignored"
	ActionExpired    ActionType = "expired"
)

// ActedOn reports whether an action type counts as positive engagement.
func ActedOn(t ActionType) bool {
	return t == ActionClicked || t == ActionMarkedDone
}

// Outcome is the mutable sub-record of an event. Fields are filled in by
// independent, idempotent updates arriving over the hours and days after the
// send; nil pointers mean "not yet observed".
type Outcome struct {
	ViewedAt                *time.Time `json:"viewed_at,omitempty"`
	Acted                   *bool      `json:"acted,omitempty"`
	ActionType              ActionType `json:"action_type,omitempty"`
	ActionTimestamp         *time.Time `json:"action_timestamp,omitempty"`
	ResponseTimeMs          *int64     `json:"response_time_ms,omitempty"`
	CompletedIntendedAction *bool      `json:"completed_intended_action,omitempty"`
	HealthScoreAfter        *float64   `json:"health_score_after,omitempty"`
	HealthScoreDelta        *float64   `json:"health_score_delta,omitempty"`
	Feedback                string     `json:"feedback,omitempty"`
}

// Event is one row of the training-data ledger: everything known at send
// time, immutable except for the outcome sub-record. Events are never
// deleted, only superseded by newer events.
type Event struct {
	ID            uuid.UUID                `json:"id"`
	PatientID     string                   `json:"patient_id"`
	NudgeID       uuid.UUID                `json:"nudge_id"`
	NudgeType     nudge.Type               `json:"nudge_type"`
	Features      features.Vector          `json:"features"` // snapshot at decision time
	Probability   float64                  `json:"probability"`
	AllScores     []scoring.CandidateScore `json:"all_candidate_scores"`
	ModelVersion  string                   `json:"model_version"`
	SelectionMode string                   `json:"selection_mode"`
	IsExploration bool                     `json:"is_exploration"`
	SentAt        time.Time                `json:"sent_at"`
	Outcome       Outcome                  `json:"outcome"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// Ref locates an event for an outcome update: by event id when the caller
// knows it, otherwise by the linked nudge id.
type Ref struct {
	EventID uuid.UUID
	NudgeID uuid.UUID
}

// Metrics summarizes the ledger over a trailing window. Rates are computed
// over events with a recorded action type, so still-open sends do not skew
// them.
type Metrics struct {
	WindowDays        int     `json:"window_days"`
	TotalResolved     int     `json:"total_resolved"`
	ActedCount        int     `json:"acted_count"`
	ActionRate        float64 `json:"action_rate"`
	CompletionRate    float64 `json:"completion_rate"`
	ExploreResolved   int     `json:"explore_resolved"`
	ExploreActionRate float64 `json:"explore_action_rate"`
	ExploitResolved   int     `json:"exploit_resolved"`
	ExploitActionRate float64 `json:"exploit_action_rate"`
}
