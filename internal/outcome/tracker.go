package outcome

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/scoring"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// ExpiryTTL is how long an unanswered nudge stays open before the sweep
// marks it expired.
const ExpiryTTL = 24 * time.Hour

// DefaultMetricsWindowDays is the trailing window for learning metrics.
const DefaultMetricsWindowDays = 30

// Tracker owns the nudge event ledger: it creates one event per send and
// applies the asynchronous outcome updates that arrive afterwards. Every
// update is idempotent and tolerant of a missing event (returns nil, not an
// error), because clients and queue consumers may report late or twice.
type Tracker struct {
	store  EventStore
	logger *logging.Logger
	now    func() time.Time
}

// NewTracker creates an outcome tracker.
func NewTracker(store EventStore, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// RecordSentInput carries everything snapshotted at send time.
type RecordSentInput struct {
	PatientID string
	NudgeID   uuid.UUID
	Features  features.Vector
	Selection *scoring.SelectionResult
	SentAt    time.Time
}

// RecordSent creates the ledger row for a sent nudge. It is the only
// creating operation; everything else mutates the outcome sub-record.
func (t *Tracker) RecordSent(ctx context.Context, in RecordSentInput) (*Event, error) {
	if in.Selection == nil {
		return nil, fmt.Errorf("outcome: record sent: selection result required")
	}
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = t.now()
	}
	e := &Event{
		PatientID:     in.PatientID,
		NudgeID:       in.NudgeID,
		NudgeType:     in.Selection.SelectedNudge.Type,
		Features:      in.Features,
		Probability:   in.Selection.SelectedNudge.Probability,
		AllScores:     in.Selection.AllCandidateScores,
		ModelVersion:  in.Selection.ModelVersion,
		SelectionMode: in.Selection.SelectionMode,
		IsExploration: in.Selection.SelectionMode == scoring.ModeExplore,
		SentAt:        sentAt,
	}
	if err := t.store.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordView marks the nudge as seen. First view wins; later reports are
// no-ops so the recorded latency stays honest.
func (t *Tracker) RecordView(ctx context.Context, ref Ref, viewedAt time.Time) (*Event, error) {
	e, err := t.find(ctx, ref)
	if e == nil || err != nil {
		return nil, err
	}
	if e.Outcome.ViewedAt != nil {
		return e, nil
	}
	if viewedAt.IsZero() {
		viewedAt = t.now()
	}
	e.Outcome.ViewedAt = &viewedAt
	return t.save(ctx, e)
}

// RecordAction records what the patient did. Clicked and marked_done count
// as acted; response time is measured from the send. A second action report
// for the same event is ignored.
func (t *Tracker) RecordAction(ctx context.Context, ref Ref, action ActionType, at time.Time) (*Event, error) {
	e, err := t.find(ctx, ref)
	if e == nil || err != nil {
		return nil, err
	}
	if e.Outcome.ActionType != "" {
		return e, nil
	}
	if at.IsZero() {
		at = t.now()
	}
	acted := ActedOn(action)
	responseMs := at.Sub(e.SentAt).Milliseconds()
	if responseMs < 0 {
		responseMs = 0
	}
	e.Outcome.Acted = &acted
	e.Outcome.ActionType = action
	e.Outcome.ActionTimestamp = &at
	e.Outcome.ResponseTimeMs = &responseMs
	return t.save(ctx, e)
}

// RecordActionCompleted marks whether the patient followed through on the
// nudge's intended action (for example, actually logged after a missing-log
// reminder).
func (t *Tracker) RecordActionCompleted(ctx context.Context, ref Ref, completed bool) (*Event, error) {
	e, err := t.find(ctx, ref)
	if e == nil || err != nil {
		return nil, err
	}
	e.Outcome.CompletedIntendedAction = &completed
	return t.save(ctx, e)
}

// RecordHealthScoreImpact records a delayed health-score reading and its
// delta against the score snapshotted at send time.
func (t *Tracker) RecordHealthScoreImpact(ctx context.Context, ref Ref, scoreAfter float64) (*Event, error) {
	e, err := t.find(ctx, ref)
	if e == nil || err != nil {
		return nil, err
	}
	delta := scoreAfter - e.Features.HealthScore
	e.Outcome.HealthScoreAfter = &scoreAfter
	e.Outcome.HealthScoreDelta = &delta
	return t.save(ctx, e)
}

// RecordFeedback attaches free-text patient feedback to the event.
func (t *Tracker) RecordFeedback(ctx context.Context, ref Ref, feedback string) (*Event, error) {
	e, err := t.find(ctx, ref)
	if e == nil || err != nil {
		return nil, err
	}
	e.Outcome.Feedback = feedback
	return t.save(ctx, e)
}

// MarkExpiredNudges closes out events older than the TTL with no recorded
// action, so the ledger has no permanently open rows. Re-running the sweep
// is a no-op for already-marked events. Returns how many events were marked.
func (t *Tracker) MarkExpiredNudges(ctx context.Context) (int, error) {
	cutoff := t.now().Add(-ExpiryTTL)
	stale, err := t.store.ListUnactionedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range stale {
		e := &stale[i]
		acted := false
		e.Outcome.Acted = &acted
		e.Outcome.ActionType = ActionExpired
		if _, err := t.save(ctx, e); err != nil {
			t.logger.Error("outcome: expiry sweep failed for event", "event_id", e.ID, "error", err)
			continue
		}
		marked++
	}
	if marked > 0 {
		t.logger.Info("outcome: expiry sweep marked events", "count", marked)
	}
	return marked, nil
}

// LearningMetrics aggregates the trailing window. The explore-vs-exploit
// action-rate split is the live signal of whether exploration pays off.
func (t *Tracker) LearningMetrics(ctx context.Context, windowDays int) (*Metrics, error) {
	if windowDays <= 0 {
		windowDays = DefaultMetricsWindowDays
	}
	to := t.now()
	from := to.AddDate(0, 0, -windowDays)
	events, err := t.store.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	m := &Metrics{WindowDays: windowDays}
	completed := 0
	exploreActed, exploitActed := 0, 0
	for i := range events {
		e := &events[i]
		if e.Outcome.ActionType == "" {
			continue // still open, not resolved yet
		}
		m.TotalResolved++
		acted := e.Outcome.Acted != nil && *e.Outcome.Acted
		if acted {
			m.ActedCount++
			if e.Outcome.CompletedIntendedAction != nil && *e.Outcome.CompletedIntendedAction {
				completed++
			}
		}
		if e.SelectionMode == scoring.ModeExplore {
			m.ExploreResolved++
			if acted {
				exploreActed++
			}
		} else {
			m.ExploitResolved++
			if acted {
				exploitActed++
			}
		}
	}

	if m.TotalResolved > 0 {
		m.ActionRate = float64(m.ActedCount) / float64(m.TotalResolved)
	}
	if m.ActedCount > 0 {
		m.CompletionRate = float64(completed) / float64(m.ActedCount)
	}
	if m.ExploreResolved > 0 {
		m.ExploreActionRate = float64(exploreActed) / float64(m.ExploreResolved)
	}
	if m.ExploitResolved > 0 {
		m.ExploitActionRate = float64(exploitActed) / float64(m.ExploitResolved)
	}
	return m, nil
}

func (t *Tracker) find(ctx context.Context, ref Ref) (*Event, error) {
	if ref.EventID != uuid.Nil {
		return t.store.GetByID(ctx, ref.EventID)
	}
	if ref.NudgeID != uuid.Nil {
		return t.store.GetByNudgeID(ctx, ref.NudgeID)
	}
	return nil, nil
}

func (t *Tracker) save(ctx context.Context, e *Event) (*Event, error) {
	if err := t.store.UpdateOutcome(ctx, e.ID, e.Outcome); err != nil {
		return nil, err
	}
	return e, nil
}
