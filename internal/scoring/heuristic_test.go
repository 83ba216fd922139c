package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

func baseVector() features.Vector {
	return features.Defaults(time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)) // Wednesday 2pm
}

func TestHeuristicProbabilitiesInRange(t *testing.T) {
	s := NewHeuristicStrategy()
	scores, err := s.Score(context.Background(), baseVector(), nudge.AllTypes())
	require.NoError(t, err)
	require.Len(t, scores.Probabilities, len(nudge.AllTypes()))
	for typ, p := range scores.Probabilities {
		assert.Greater(t, p, 0.0, "type %s", typ)
		assert.Less(t, p, 1.0, "type %s", typ)
	}
	assert.Equal(t, "heuristic-v1", scores.ModelVersion)
}

func TestHeuristicDomainPriors(t *testing.T) {
	s := NewHeuristicStrategy()
	ctx := context.Background()
	types := []nudge.Type{nudge.TypeMissingLog}

	score := func(v features.Vector) float64 {
		out, err := s.Score(ctx, v, types)
		require.NoError(t, err)
		return out.Probabilities[nudge.TypeMissingLog]
	}

	t.Run("responsive patients score higher", func(t *testing.T) {
		low, high := baseVector(), baseVector()
		low.PreviousNudgeSuccessRate = 0.1
		high.PreviousNudgeSuccessRate = 0.9
		assert.Greater(t, score(high), score(low))
	})

	t.Run("long silences score lower", func(t *testing.T) {
		recent, stale := baseVector(), baseVector()
		stale.DaysSinceLastInteraction = 10
		assert.Less(t, score(stale), score(recent))
	})

	t.Run("weekends score lower", func(t *testing.T) {
		weekday, weekend := baseVector(), baseVector()
		weekend.IsWeekend = true
		assert.Less(t, score(weekend), score(weekday))
	})

	t.Run("morning hours score higher", func(t *testing.T) {
		afternoon, morning := baseVector(), baseVector()
		morning.HourOfDay = 8
		assert.Greater(t, score(morning), score(afternoon))
	})

	t.Run("evening hours score higher", func(t *testing.T) {
		afternoon, evening := baseVector(), baseVector()
		evening.HourOfDay = 19
		assert.Greater(t, score(evening), score(afternoon))
	})

	t.Run("lower health score adds urgency", func(t *testing.T) {
		healthy, sick := baseVector(), baseVector()
		sick.HealthScore = 30
		assert.Greater(t, score(sick), score(healthy))
	})
}

func TestHeuristicTypeBiasOrdering(t *testing.T) {
	s := NewHeuristicStrategy()
	scores, err := s.Score(context.Background(), baseVector(),
		[]nudge.Type{nudge.TypeAppointmentReminder, nudge.TypeMoodSupport, nudge.TypeGeneralCheckin})
	require.NoError(t, err)

	p := scores.Probabilities
	assert.Greater(t, p[nudge.TypeAppointmentReminder], p[nudge.TypeMoodSupport])
	assert.Greater(t, p[nudge.TypeMoodSupport], p[nudge.TypeGeneralCheckin])
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-9)
	assert.InDelta(t, 0.731, sigmoid(1), 0.001)
	assert.Greater(t, sigmoid(10), 0.9999)
	assert.Less(t, sigmoid(-10), 0.0001)
}
