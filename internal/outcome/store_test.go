package outcome

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/scoring"
)

func eventRows(t *testing.T, e *Event) *pgxmock.Rows {
	t.Helper()
	featuresJSON, err := json.Marshal(e.Features)
	require.NoError(t, err)
	scoresJSON, err := json.Marshal(e.AllScores)
	require.NoError(t, err)
	outcomeJSON, err := json.Marshal(e.Outcome)
	require.NoError(t, err)
	return pgxmock.NewRows([]string{
		"id", "patient_id", "nudge_id", "nudge_type", "features", "probability", "candidate_scores",
		"model_version", "selection_mode", "is_exploration", "sent_at", "outcome", "created_at", "updated_at",
	}).AddRow(
		e.ID, e.PatientID, e.NudgeID, string(e.NudgeType), featuresJSON, e.Probability, scoresJSON,
		e.ModelVersion, e.SelectionMode, e.IsExploration, e.SentAt, outcomeJSON, e.CreatedAt, e.UpdatedAt,
	)
}

func sampleEvent() *Event {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return &Event{
		ID:          uuid.New(),
		PatientID:   "patient-1",
		NudgeID:     uuid.New(),
		NudgeType:   nudge.TypeSleepDeficit,
		Features:    features.Defaults(now),
		Probability: 0.72,
		AllScores: []scoring.CandidateScore{
			{NudgeType: nudge.TypeSleepDeficit, Probability: 0.72},
		},
		ModelVersion:  "heuristic-v1",
		SelectionMode: scoring.ModeExploit,
		SentAt:        now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresStoreCreateAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO nudge_events").
		WithArgs(
			pgxmock.AnyArg(), "patient-1", pgxmock.AnyArg(), "sleep_deficit", pgxmock.AnyArg(), 0.72,
			pgxmock.AnyArg(), "heuristic-v1", "exploit", false, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStore(mock)
	e := sampleEvent()
	e.ID = uuid.Nil
	e.SentAt = time.Time{}

	require.NoError(t, store.Create(context.Background(), e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.SentAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetByIDRoundTrips(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleEvent()
	acted := true
	want.Outcome.Acted = &acted
	want.Outcome.ActionType = ActionClicked

	mock.ExpectQuery("SELECT (.+) FROM nudge_events WHERE id").
		WithArgs(want.ID).
		WillReturnRows(eventRows(t, want))

	store := NewPostgresStore(mock)
	got, err := store.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.NudgeType, got.NudgeType)
	assert.Equal(t, want.Features.HealthScore, got.Features.HealthScore)
	assert.Equal(t, want.AllScores, got.AllScores)
	assert.Equal(t, ActionClicked, got.Outcome.ActionType)
	require.NotNil(t, got.Outcome.Acted)
	assert.True(t, *got.Outcome.Acted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetByIDMissingReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM nudge_events WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := NewPostgresStore(mock)
	got, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStoreGetByNudgeID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleEvent()
	mock.ExpectQuery("SELECT (.+) FROM nudge_events\\s+WHERE nudge_id").
		WithArgs(want.NudgeID).
		WillReturnRows(eventRows(t, want))

	store := NewPostgresStore(mock)
	got, err := store.GetByNudgeID(context.Background(), want.NudgeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	acted := true
	o := Outcome{Acted: &acted, ActionType: ActionMarkedDone}

	mock.ExpectExec("UPDATE nudge_events SET outcome").
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgresStore(mock)
	require.NoError(t, store.UpdateOutcome(context.Background(), id, o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateOutcomeMissingRowErrs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE nudge_events SET outcome").
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	err = store.UpdateOutcome(context.Background(), id, Outcome{})
	assert.Error(t, err)
}

func TestPostgresStoreListUnactionedBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	e := sampleEvent()
	mock.ExpectQuery("SELECT (.+) FROM nudge_events\\s+WHERE sent_at <=").
		WithArgs(cutoff).
		WillReturnRows(eventRows(t, e))

	store := NewPostgresStore(mock)
	got, err := store.ListUnactionedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListByDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	e := sampleEvent()
	mock.ExpectQuery("SELECT (.+) FROM nudge_events\\s+WHERE sent_at >=").
		WithArgs(from, to).
		WillReturnRows(eventRows(t, e))

	store := NewPostgresStore(mock)
	got, err := store.ListByDateRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
