package nudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for care_nudges.
type Store struct {
	db DB
}

// NewStore creates a new care nudge store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const nudgeColumns = `id, patient_id, title, message, priority, category, status, generated_trigger,
	model_version, selection_mode, confidence_score, reasoning, action_label, action_link,
	context, scheduled_for, expires_at, created_at, updated_at`

// Create inserts a new care nudge.
func (s *Store) Create(ctx context.Context, n *CareNudge) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = StatusPending
	}
	if n.ScheduledFor.IsZero() {
		n.ScheduledFor = now
	}

	contextJSON, err := json.Marshal(n.Context)
	if err != nil {
		return fmt.Errorf("nudge: encode context: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO care_nudges (id, patient_id, title, message, priority, category, status, generated_trigger,
			model_version, selection_mode, confidence_score, reasoning, action_label, action_link,
			context, scheduled_for, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		n.ID, n.PatientID, n.Title, n.Message, string(n.Priority), string(n.Category), string(n.Status),
		string(n.GeneratedTrigger), n.ModelVersion, n.SelectionMode, n.ConfidenceScore,
		n.Reasoning, n.ActionLabel, n.ActionLink, contextJSON, n.ScheduledFor, n.ExpiresAt,
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("nudge: create: %w", err)
	}
	return nil
}

// LatestByPatient returns the most recently created nudge for a patient, or
// nil when none exists.
func (s *Store) LatestByPatient(ctx context.Context, patientID string) (*CareNudge, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+nudgeColumns+`
		FROM care_nudges
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, patientID)
	n, err := scanNudge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nudge: latest by patient: %w", err)
	}
	return n, nil
}

// CountCreatedSince counts nudges created for a patient at or after the
// given instant. The orchestrator passes start-of-day UTC to enforce the
// daily cap.
func (s *Store) CountCreatedSince(ctx context.Context, patientID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM care_nudges WHERE patient_id = $1 AND created_at >= $2`,
		patientID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("nudge: count created since: %w", err)
	}
	return count, nil
}

// FindOpenByType returns a pending or active nudge of the given trigger type
// for the patient, or nil. Used for deduplication.
func (s *Store) FindOpenByType(ctx context.Context, patientID string, t Type) (*CareNudge, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+nudgeColumns+`
		FROM care_nudges
		WHERE patient_id = $1 AND generated_trigger = $2 AND status IN ('pending', 'active')
		ORDER BY created_at DESC
		LIMIT 1`, patientID, string(t))
	n, err := scanNudge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nudge: find open by type: %w", err)
	}
	return n, nil
}

// GetByID fetches a nudge by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*CareNudge, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+nudgeColumns+`
		FROM care_nudges
		WHERE id = $1`, id)
	n, err := scanNudge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nudge: get by id: %w", err)
	}
	return n, nil
}

// UpdateStatus transitions a nudge to the given status.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE care_nudges SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("nudge: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("nudge: update status: no nudge with id %s", id)
	}
	return nil
}

// ExpireOpenBefore marks open nudges whose expires_at has passed as expired
// and returns their ids.
func (s *Store) ExpireOpenBefore(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE care_nudges
		SET status = 'expired', updated_at = $1
		WHERE status IN ('pending', 'active') AND expires_at <= $1
		RETURNING id`, asOf)
	if err != nil {
		return nil, fmt.Errorf("nudge: expire open: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("nudge: expire open scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanNudge(row pgx.Row) (*CareNudge, error) {
	var (
		n           CareNudge
		priority    string
		category    string
		status      string
		trigger     string
		contextJSON []byte
	)
	err := row.Scan(
		&n.ID, &n.PatientID, &n.Title, &n.Message, &priority, &category, &status, &trigger,
		&n.ModelVersion, &n.SelectionMode, &n.ConfidenceScore, &n.Reasoning, &n.ActionLabel,
		&n.ActionLink, &contextJSON, &n.ScheduledFor, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Priority = Priority(priority)
	n.Category = Category(category)
	n.Status = Status(status)
	n.GeneratedTrigger = Type(trigger)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &n.Context); err != nil {
			return nil, fmt.Errorf("nudge: decode context: %w", err)
		}
	}
	return &n, nil
}
