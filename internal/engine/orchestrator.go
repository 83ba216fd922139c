package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/message"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/observability/metrics"
	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/internal/risk"
	"github.com/wolfman30/nudge-engine/internal/scoring"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// Terminal reasons for a pipeline run. Only ReasonError is a failure; the
// rest are expected skip outcomes.
const (
	ReasonSent            = "sent"
	ReasonFeatureDisabled = "feature_disabled"
	ReasonTooSoon         = "too_soon"
	ReasonDailyLimit      = "daily_limit"
	ReasonNoNudgeNeeded   = "no_nudge_needed"
	ReasonSelectionFailed = "selection_failed"
	ReasonDuplicate       = "duplicate_nudge"
	ReasonError           = "error"
)

// Config holds the orchestrator's tunables. Passed in explicitly; there is
// no process-wide flag state.
type Config struct {
	Enabled               bool
	MinHoursBetweenNudges int
	MaxNudgesPerDay       int
	NudgeTTL              time.Duration
}

// Options tune a single run.
type Options struct {
	// ForceRun bypasses the global enable flag.
	ForceRun bool
	// ForceExplore is passed through to the selector.
	ForceExplore bool
}

// Result is the terminal outcome of one pipeline run.
type Result struct {
	Success    bool             `json:"success"`
	Reason     string           `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Nudge      *nudge.CareNudge `json:"nudge,omitempty"`
	Event      *outcome.Event   `json:"event,omitempty"`
	Assessment *risk.Assessment `json:"assessment,omitempty"`
}

// nudgeReader is the orchestrator's read-side view of persisted nudges.
type nudgeReader interface {
	LatestByPatient(ctx context.Context, patientID string) (*nudge.CareNudge, error)
	CountCreatedSince(ctx context.Context, patientID string, since time.Time) (int, error)
	FindOpenByType(ctx context.Context, patientID string, t nudge.Type) (*nudge.CareNudge, error)
}

// sentWriter persists the CareNudge and its ledger event as one unit.
type sentWriter interface {
	PersistSent(ctx context.Context, n *nudge.CareNudge, in outcome.RecordSentInput) (*outcome.Event, error)
}

// alerter notifies operators of fatal pipeline errors.
type alerter interface {
	AlertPipelineFailure(ctx context.Context, patientID string, runErr error)
}

// Deps are the orchestrator's collaborators. Reader, Writer, Features,
// Assessor, Selector and Generator are required; the rest are optional.
type Deps struct {
	Features  features.Source
	Assessor  *risk.Assessor
	Selector  *scoring.Selector
	Generator message.Generator
	Reader    nudgeReader
	Writer    sentWriter
	Lock      *PatientLock
	Alerts    alerter
	Metrics   *metrics.EngineMetrics
	Logger    *logging.Logger
}

// Orchestrator runs the decision pipeline end to end for one patient.
type Orchestrator struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.MinHoursBetweenNudges <= 0 {
		cfg.MinHoursBetweenNudges = 4
	}
	if cfg.MaxNudgesPerDay <= 0 {
		cfg.MaxNudgesPerDay = 3
	}
	if cfg.NudgeTTL <= 0 {
		cfg.NudgeTTL = 24 * time.Hour
	}
	return &Orchestrator{cfg: cfg, deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Run executes the pipeline. Skips return Success=false with a reason and
// are not errors. Any failure inside the pipeline is contained here: the
// caller always gets a Result, never a panic or a raw error.
func (o *Orchestrator) Run(ctx context.Context, patientID string, opts Options) Result {
	start := o.now()
	result := o.runPipeline(ctx, patientID, opts)
	o.deps.Metrics.ObserveRun(reasonLabel(result), o.now().Sub(start).Seconds())

	if result.Reason == ReasonError {
		o.deps.Logger.Error("nudge pipeline failed", "patient_id", patientID, "error", result.Error)
	}
	return result
}

func (o *Orchestrator) runPipeline(ctx context.Context, patientID string, opts Options) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = o.fail(ctx, patientID, panicError(r))
		}
	}()

	// Step 1: global enable flag.
	if !o.cfg.Enabled && !opts.ForceRun {
		return Result{Reason: ReasonFeatureDisabled}
	}

	// Concurrent runs for the same patient race the rate-limit and dedup
	// reads below; the lock serializes them. A run that loses the lock is
	// reported as a duplicate since the holder is already deciding.
	release, acquired := o.deps.Lock.Acquire(ctx, patientID)
	if !acquired {
		return Result{Reason: ReasonDuplicate}
	}
	defer release()

	// Step 2: feature vector.
	vector, err := o.deps.Features.GetFeatures(ctx, patientID)
	if err != nil {
		return o.fail(ctx, patientID, err)
	}

	// Step 3: rate limits against the latest sent nudge and today's count.
	now := o.now()
	latest, err := o.deps.Reader.LatestByPatient(ctx, patientID)
	if err != nil {
		return o.fail(ctx, patientID, err)
	}
	if latest != nil {
		minGap := time.Duration(o.cfg.MinHoursBetweenNudges) * time.Hour
		if now.Sub(latest.CreatedAt) < minGap {
			return Result{Reason: ReasonTooSoon}
		}
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayCount, err := o.deps.Reader.CountCreatedSince(ctx, patientID, startOfDay)
	if err != nil {
		return o.fail(ctx, patientID, err)
	}
	if todayCount >= o.cfg.MaxNudgesPerDay {
		return Result{Reason: ReasonDailyLimit}
	}

	// Step 4: risk assessment.
	assessment := o.deps.Assessor.Assess(vector)
	if len(assessment.CandidateNudges) == 0 {
		return Result{Reason: ReasonNoNudgeNeeded, Assessment: &assessment}
	}

	// Step 5: score and select.
	selection := o.deps.Selector.Select(ctx, vector, assessment.CandidateNudges, scoring.Options{ForceExplore: opts.ForceExplore})
	if selection == nil {
		return Result{Reason: ReasonSelectionFailed, Assessment: &assessment}
	}
	o.deps.Metrics.ObserveSelection(selection.Strategy, selection.SelectionMode)
	selectedType := selection.SelectedNudge.Type

	// Step 6: dedup against open nudges of the same type.
	open, err := o.deps.Reader.FindOpenByType(ctx, patientID, selectedType)
	if err != nil {
		return o.fail(ctx, patientID, err)
	}
	if open != nil {
		return Result{Reason: ReasonDuplicate, Assessment: &assessment}
	}

	// Step 7: content, degrading to templates inside the generator.
	content := o.deps.Generator.Generate(ctx, message.GenerateInput{
		PatientID:     patientID,
		Features:      vector,
		SelectedNudge: selection.SelectedNudge,
		RelevantRisks: assessment.RisksFor(selectedType),
	})

	// Steps 8-9: persist nudge and ledger event as one unit.
	labels, err := o.deps.Features.RecentLabels(ctx, patientID, 3)
	if err != nil {
		o.deps.Logger.Warn("recent labels unavailable for context snapshot", "patient_id", patientID, "error", err)
		labels = nil
	}
	careNudge := o.buildNudge(patientID, vector, labels, selection, content, now)
	event, err := o.deps.Writer.PersistSent(ctx, careNudge, outcome.RecordSentInput{
		PatientID: patientID,
		NudgeID:   careNudge.ID,
		Features:  vector,
		Selection: selection,
		SentAt:    now,
	})
	if err != nil {
		return o.fail(ctx, patientID, err)
	}

	o.deps.Logger.Info("nudge sent",
		"patient_id", patientID,
		"nudge_type", string(selectedType),
		"mode", selection.SelectionMode,
		"strategy", selection.Strategy,
		"model_version", selection.ModelVersion,
		"probability", selection.SelectedNudge.Probability,
	)
	return Result{Success: true, Nudge: careNudge, Event: event, Assessment: &assessment}
}

func (o *Orchestrator) buildNudge(patientID string, vector features.Vector, labels []string, selection *scoring.SelectionResult, content message.GeneratedMessage, now time.Time) *nudge.CareNudge {
	if len(labels) > 3 {
		labels = labels[:3]
	}
	return &nudge.CareNudge{
		ID:               uuid.New(),
		PatientID:        patientID,
		Title:            content.Title,
		Message:          content.Message,
		Priority:         selection.SelectedNudge.Priority,
		Category:         nudge.CategoryFor(selection.SelectedNudge.Type),
		Status:           nudge.StatusPending,
		GeneratedTrigger: selection.SelectedNudge.Type,
		ModelVersion:     selection.ModelVersion,
		SelectionMode:    selection.SelectionMode,
		ConfidenceScore:  selection.SelectedNudge.Probability,
		Reasoning:        content.Reasoning,
		ActionLabel:      content.ActionLabel,
		ActionLink:       content.ActionLink,
		Context: nudge.ContextSnapshot{
			HealthScore:      vector.HealthScore,
			HealthScoreTrend: string(vector.HealthScoreTrend),
			DaysSinceLastLog: vector.DaysSinceLastLog,
			RecentLabels:     labels,
		},
		ScheduledFor: now,
		ExpiresAt:    now.Add(o.cfg.NudgeTTL),
	}
}

func (o *Orchestrator) fail(ctx context.Context, patientID string, err error) Result {
	if o.deps.Alerts != nil {
		o.deps.Alerts.AlertPipelineFailure(ctx, patientID, err)
	}
	return Result{Reason: ReasonError, Error: err.Error()}
}

func reasonLabel(r Result) string {
	if r.Success {
		return ReasonSent
	}
	return r.Reason
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("engine: pipeline panic: %w", err)
	}
	return fmt.Errorf("engine: pipeline panic: %v", r)
}
