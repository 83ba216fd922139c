package features

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource derives a feature vector from the patient's health logs,
// health scores, appointments and nudge history. Every read is best-effort:
// a failed or empty query leaves the healthy/neutral default in place, so
// GetFeatures never fails for a valid patient id.
type PostgresSource struct {
	db     DB
	logger *logging.Logger
}

// NewPostgresSource creates a feature source backed by pgx.
func NewPostgresSource(db DB, logger *logging.Logger) *PostgresSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresSource{db: db, logger: logger}
}

const trendThreshold = 5.0

// GetFeatures computes the decision-time vector for a patient.
func (s *PostgresSource) GetFeatures(ctx context.Context, patientID string) (Vector, error) {
	now := time.Now().UTC()
	v := Defaults(now)

	s.loadHealthScore(ctx, patientID, now, &v)
	s.loadLogAggregates(ctx, patientID, now, &v)
	s.loadInteraction(ctx, patientID, now, &v)
	s.loadNudgeHistory(ctx, patientID, &v)
	s.loadNextAppointment(ctx, patientID, now, &v)

	return v, nil
}

func (s *PostgresSource) loadHealthScore(ctx context.Context, patientID string, now time.Time, v *Vector) {
	var latest, weekAgo *float64
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT score FROM health_scores WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1),
			(SELECT score FROM health_scores WHERE patient_id = $1 AND recorded_at <= $2 ORDER BY recorded_at DESC LIMIT 1)`,
		patientID, now.AddDate(0, 0, -7),
	).Scan(&latest, &weekAgo)
	if err != nil {
		s.logger.Warn("features: health score read failed", "patient_id", patientID, "error", err)
		return
	}
	if latest == nil {
		return
	}
	v.HealthScore = *latest
	if weekAgo == nil {
		v.HealthScoreTrend = TrendUnknown
		return
	}
	switch delta := *latest - *weekAgo; {
	case delta >= trendThreshold:
		v.HealthScoreTrend = TrendImproving
	case delta <= -trendThreshold:
		v.HealthScoreTrend = TrendDeclining
	default:
		v.HealthScoreTrend = TrendStable
	}
}

func (s *PostgresSource) loadLogAggregates(ctx context.Context, patientID string, now time.Time, v *Vector) {
	weekStart := now.AddDate(0, 0, -7)
	var (
		avgSleep, avgMood *float64
		logCount, logDays int
		lastLog           *time.Time
		symptomCount      int
	)
	err := s.db.QueryRow(ctx, `
		SELECT
			AVG(sleep_hours) FILTER (WHERE sleep_hours IS NOT NULL),
			AVG(mood) FILTER (WHERE mood IS NOT NULL),
			COUNT(*),
			COUNT(DISTINCT logged_at::date),
			MAX(logged_at),
			COUNT(*) FILTER (WHERE cardinality(symptoms) > 0 AND logged_at >= $3)
		FROM health_logs
		WHERE patient_id = $1 AND logged_at >= $2`,
		patientID, weekStart, now.AddDate(0, 0, -2),
	).Scan(&avgSleep, &avgMood, &logCount, &logDays, &lastLog, &symptomCount)
	if err != nil {
		s.logger.Warn("features: log aggregate read failed", "patient_id", patientID, "error", err)
		return
	}
	if avgSleep != nil {
		v.AvgSleep7d = *avgSleep
	}
	if avgMood != nil {
		v.AvgMood7d = *avgMood
	}
	if logCount > 0 {
		v.ActivityFrequency = float64(logCount) / 7.0
		v.LoggingConsistency = float64(logDays) / 7.0
	}
	if lastLog != nil {
		v.DaysSinceLastLog = daysBetween(*lastLog, now)
	} else {
		// Nothing logged in the window; check for any older log at all.
		var everLogged *time.Time
		if err := s.db.QueryRow(ctx,
			`SELECT MAX(logged_at) FROM health_logs WHERE patient_id = $1`,
			patientID,
		).Scan(&everLogged); err == nil && everLogged != nil {
			v.DaysSinceLastLog = daysBetween(*everLogged, now)
		} else {
			v.DaysSinceLastLog = 7
		}
		v.ActivityFrequency = 0
		v.LoggingConsistency = 0
	}
	v.HasActiveSymptoms = symptomCount > 0
}

func (s *PostgresSource) loadInteraction(ctx context.Context, patientID string, now time.Time, v *Vector) {
	var lastInteraction *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT last_interaction_at FROM patients WHERE id = $1`,
		patientID,
	).Scan(&lastInteraction)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("features: interaction read failed", "patient_id", patientID, "error", err)
		}
		return
	}
	if lastInteraction != nil {
		v.DaysSinceLastInteraction = daysBetween(*lastInteraction, now)
	}
}

func (s *PostgresSource) loadNudgeHistory(ctx context.Context, patientID string, v *Vector) {
	var received, acted int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE (outcome->>'acted')::bool)
		FROM nudge_events WHERE patient_id = $1`,
		patientID,
	).Scan(&received, &acted)
	if err != nil {
		s.logger.Warn("features: nudge history read failed", "patient_id", patientID, "error", err)
		return
	}
	v.TotalNudgesReceived = received
	v.TotalNudgesActedOn = acted
	if received > 0 {
		v.PreviousNudgeSuccessRate = float64(acted) / float64(received)
	}
}

func (s *PostgresSource) loadNextAppointment(ctx context.Context, patientID string, now time.Time, v *Vector) {
	var next *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT MIN(scheduled_at) FROM appointments
		WHERE patient_id = $1 AND scheduled_at > $2 AND status = 'scheduled'`,
		patientID, now,
	).Scan(&next)
	if err != nil {
		s.logger.Warn("features: appointment read failed", "patient_id", patientID, "error", err)
		return
	}
	if next != nil {
		v.DaysUntilNextAppointment = int(math.Ceil(next.Sub(now).Hours() / 24))
	}
}

// RecentLabels returns the newest symptom and mood labels logged for the
// patient, capped at limit.
func (s *PostgresSource) RecentLabels(ctx context.Context, patientID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.Query(ctx, `
		SELECT label FROM (
			SELECT unnest(symptoms) AS label, logged_at
			FROM health_logs
			WHERE patient_id = $1
			ORDER BY logged_at DESC
			LIMIT 10
		) recent
		LIMIT $2`,
		patientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func daysBetween(from, to time.Time) float64 {
	d := to.Sub(from).Hours() / 24
	if d < 0 {
		return 0
	}
	return math.Round(d*10) / 10
}
