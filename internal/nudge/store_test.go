package nudge

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nudgeRows(t *testing.T, n *CareNudge) *pgxmock.Rows {
	t.Helper()
	contextJSON, err := json.Marshal(n.Context)
	require.NoError(t, err)
	return pgxmock.NewRows([]string{
		"id", "patient_id", "title", "message", "priority", "category", "status", "generated_trigger",
		"model_version", "selection_mode", "confidence_score", "reasoning", "action_label", "action_link",
		"context", "scheduled_for", "expires_at", "created_at", "updated_at",
	}).AddRow(
		n.ID, n.PatientID, n.Title, n.Message, string(n.Priority), string(n.Category), string(n.Status),
		string(n.GeneratedTrigger), n.ModelVersion, n.SelectionMode, n.ConfidenceScore,
		n.Reasoning, n.ActionLabel, n.ActionLink, contextJSON, n.ScheduledFor, n.ExpiresAt,
		n.CreatedAt, n.UpdatedAt,
	)
}

func sampleNudge() *CareNudge {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return &CareNudge{
		ID:               uuid.New(),
		PatientID:        "patient-1",
		Title:            "Time to log your sleep",
		Message:          "A quick log keeps your picture accurate.",
		Priority:         PriorityMedium,
		Category:         CategoryReminder,
		Status:           StatusActive,
		GeneratedTrigger: TypeMissingLog,
		ModelVersion:     "heuristic-v1",
		SelectionMode:    "exploit",
		ConfidenceScore:  0.62,
		Context: ContextSnapshot{
			HealthScore:      55,
			HealthScoreTrend: "declining",
			DaysSinceLastLog: 3,
			RecentLabels:     []string{"fatigue"},
		},
		ScheduledFor: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStoreCreateAssignsIDAndDefaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO care_nudges").
		WithArgs(
			pgxmock.AnyArg(), "patient-1", "Title", "Body", "high", "alert", "pending",
			"declining_score", "heuristic-v1", "exploit", 0.8, "", "", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	n := &CareNudge{
		PatientID:        "patient-1",
		Title:            "Title",
		Message:          "Body",
		Priority:         PriorityHigh,
		Category:         CategoryAlert,
		GeneratedTrigger: TypeDecliningScore,
		ModelVersion:     "heuristic-v1",
		SelectionMode:    "exploit",
		ConfidenceScore:  0.8,
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), n))

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, StatusPending, n.Status)
	assert.False(t, n.ScheduledFor.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreLatestByPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleNudge()
	mock.ExpectQuery("SELECT (.+) FROM care_nudges").
		WithArgs("patient-1").
		WillReturnRows(nudgeRows(t, want))

	store := NewStore(mock)
	got, err := store.LatestByPatient(context.Background(), "patient-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, TypeMissingLog, got.GeneratedTrigger)
	assert.Equal(t, CategoryReminder, got.Category)
	assert.Equal(t, []string{"fatigue"}, got.Context.RecentLabels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreLatestByPatientNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM care_nudges").
		WithArgs("patient-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := NewStore(mock)
	got, err := store.LatestByPatient(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreLatestByPatientWrappedNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Drivers may wrap ErrNoRows, so the store matches with errors.Is.
	mock.ExpectQuery("SELECT (.+) FROM care_nudges").
		WithArgs("patient-1").
		WillReturnError(fmt.Errorf("query: %w", pgx.ErrNoRows))

	store := NewStore(mock)
	got, err := store.LatestByPatient(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreFindOpenByType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleNudge()
	mock.ExpectQuery("SELECT (.+) FROM care_nudges").
		WithArgs("patient-1", "missing_log").
		WillReturnRows(nudgeRows(t, want))

	store := NewStore(mock)
	got, err := store.FindOpenByType(context.Background(), "patient-1", TypeMissingLog)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusActive, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountCreatedSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT(.+) FROM care_nudges").
		WithArgs("patient-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	store := NewStore(mock)
	count, err := store.CountCreatedSince(context.Background(), "patient-1", since)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStoreExpireOpenBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id1, id2 := uuid.New(), uuid.New()
	asOf := time.Now().UTC()
	mock.ExpectQuery("UPDATE care_nudges").
		WithArgs(asOf).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id1).AddRow(id2))

	store := NewStore(mock)
	ids, err := store.ExpireOpenBefore(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id1, id2}, ids)
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryReminder, CategoryFor(TypeMissingLog))
	assert.Equal(t, CategoryAlert, CategoryFor(TypeDecliningScore))
	assert.Equal(t, CategoryCelebration, CategoryFor(TypeImprovingScore))
	assert.Equal(t, CategoryCelebration, CategoryFor(TypeStreakCelebration))
	assert.Equal(t, CategoryReminder, CategoryFor(TypeAppointmentReminder))
	// Unmapped types default to suggestion.
	assert.Equal(t, CategorySuggestion, CategoryFor(TypeSleepDeficit))
	assert.Equal(t, CategorySuggestion, CategoryFor(TypeGeneralCheckin))
}
