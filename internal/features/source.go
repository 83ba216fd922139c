package features

import (
	"context"
	"time"
)

// Source computes a feature vector for a patient at decision time.
// Implementations must fill defaults for anything they cannot read and must
// not fail for a valid patient id.
type Source interface {
	GetFeatures(ctx context.Context, patientID string) (Vector, error)
	// RecentLabels returns up to limit recent symptom/mood labels for the
	// patient, newest first. Used for the nudge context snapshot.
	RecentLabels(ctx context.Context, patientID string, limit int) ([]string, error)
}

// StaticSource returns a fixed vector. Used in tests and demo wiring.
type StaticSource struct {
	Vector Vector
	Labels []string
}

// GetFeatures returns the configured vector with time-of-day fields
// refreshed to now.
func (s *StaticSource) GetFeatures(_ context.Context, _ string) (Vector, error) {
	v := s.Vector
	now := time.Now().UTC()
	v.HourOfDay = now.Hour()
	v.DayOfWeek = int(now.Weekday())
	v.IsWeekend = v.DayOfWeek == 0 || v.DayOfWeek == 6
	return v, nil
}

// RecentLabels returns the configured labels, capped at limit.
func (s *StaticSource) RecentLabels(_ context.Context, _ string, limit int) ([]string, error) {
	if limit <= 0 || limit >= len(s.Labels) {
		return s.Labels, nil
	}
	return s.Labels[:limit], nil
}
