package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore is the tracker's view of event persistence.
type EventStore interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetByNudgeID(ctx context.Context, nudgeID uuid.UUID) (*Event, error)
	UpdateOutcome(ctx context.Context, id uuid.UUID, o Outcome) error
	ListUnactionedBefore(ctx context.Context, cutoff time.Time) ([]Event, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Event, error)
}

// PostgresStore persists nudge events in the relational database.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates an event store backed by pgx.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, patient_id, nudge_id, nudge_type, features, probability, candidate_scores,
	model_version, selection_mode, is_exploration, sent_at, outcome, created_at, updated_at`

// Create inserts a new event row.
func (s *PostgresStore) Create(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.SentAt.IsZero() {
		e.SentAt = now
	}

	featuresJSON, err := json.Marshal(e.Features)
	if err != nil {
		return fmt.Errorf("outcome: encode features: %w", err)
	}
	scoresJSON, err := json.Marshal(e.AllScores)
	if err != nil {
		return fmt.Errorf("outcome: encode scores: %w", err)
	}
	outcomeJSON, err := json.Marshal(e.Outcome)
	if err != nil {
		return fmt.Errorf("outcome: encode outcome: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO nudge_events (id, patient_id, nudge_id, nudge_type, features, probability, candidate_scores,
			model_version, selection_mode, is_exploration, sent_at, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.PatientID, e.NudgeID, string(e.NudgeType), featuresJSON, e.Probability, scoresJSON,
		e.ModelVersion, e.SelectionMode, e.IsExploration, e.SentAt, outcomeJSON, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("outcome: create event: %w", err)
	}
	return nil
}

// GetByID fetches an event, or nil when it does not exist.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM nudge_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outcome: get by id: %w", err)
	}
	return e, nil
}

// GetByNudgeID fetches the event created for a nudge, or nil.
func (s *PostgresStore) GetByNudgeID(ctx context.Context, nudgeID uuid.UUID) (*Event, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM nudge_events
		WHERE nudge_id = $1
		ORDER BY sent_at DESC
		LIMIT 1`, nudgeID)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outcome: get by nudge id: %w", err)
	}
	return e, nil
}

// UpdateOutcome replaces the outcome sub-record of an event.
func (s *PostgresStore) UpdateOutcome(ctx context.Context, id uuid.UUID, o Outcome) error {
	outcomeJSON, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("outcome: encode outcome: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE nudge_events SET outcome = $2, updated_at = $3 WHERE id = $1`,
		id, outcomeJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("outcome: update outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outcome: update outcome: no event with id %s", id)
	}
	return nil
}

// ListUnactionedBefore returns events sent at or before the cutoff whose
// outcome has no recorded action type. Used by the expiry sweep.
func (s *PostgresStore) ListUnactionedBefore(ctx context.Context, cutoff time.Time) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+` FROM nudge_events
		WHERE sent_at <= $1 AND COALESCE(outcome->>'action_type', '') = ''
		ORDER BY sent_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("outcome: list unactioned: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByDateRange returns events sent within [from, to).
func (s *PostgresStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+` FROM nudge_events
		WHERE sent_at >= $1 AND sent_at < $2
		ORDER BY sent_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("outcome: list by date range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("outcome: scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e            Event
		nudgeType    string
		featuresJSON []byte
		scoresJSON   []byte
		outcomeJSON  []byte
	)
	err := row.Scan(
		&e.ID, &e.PatientID, &e.NudgeID, &nudgeType, &featuresJSON, &e.Probability, &scoresJSON,
		&e.ModelVersion, &e.SelectionMode, &e.IsExploration, &e.SentAt, &outcomeJSON,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.NudgeType = nudge.Type(nudgeType)
	if err := json.Unmarshal(featuresJSON, &e.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if len(scoresJSON) > 0 {
		if err := json.Unmarshal(scoresJSON, &e.AllScores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
	}
	if len(outcomeJSON) > 0 {
		if err := json.Unmarshal(outcomeJSON, &e.Outcome); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
	}
	return &e, nil
}
