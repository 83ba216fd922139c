package scoring

import (
	"context"
	"math"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// Weights parameterize the linear model: probability =
// sigmoid(dot(features, weights) + bias[type]). The heuristic strategy uses
// hand-tuned priors; the trained strategy loads learned values of the same
// shape.
type Weights struct {
	Intercept            float64 `json:"intercept"`
	PrevSuccessRate      float64 `json:"prev_success_rate"`
	LoggingConsistency   float64 `json:"logging_consistency"`
	DaysSinceInteraction float64 `json:"days_since_interaction"`
	DaysSinceLog         float64 `json:"days_since_log"`
	Urgency              float64 `json:"urgency"` // applied to (100-healthScore)/100
	Weekend              float64 `json:"weekend"`
	MorningHours         float64 `json:"morning_hours"` // 6-10
	EveningHours         float64 `json:"evening_hours"` // 18-21
}

// DefaultWeights are the cold-start domain priors: responsive, consistent
// patients score higher; long silences score lower; weekends hurt and
// morning/evening hours help.
func DefaultWeights() Weights {
	return Weights{
		Intercept:            -0.5,
		PrevSuccessRate:      1.2,
		LoggingConsistency:   0.8,
		DaysSinceInteraction: -0.15,
		DaysSinceLog:         -0.1,
		Urgency:              0.5,
		Weekend:              -0.3,
		MorningHours:         0.25,
		EveningHours:         0.2,
	}
}

// DefaultTypeBias reflects how inherently actionable each nudge kind is.
// Appointment reminders convert well; generic check-ins do not.
func DefaultTypeBias() map[nudge.Type]float64 {
	return map[nudge.Type]float64{
		nudge.TypeAppointmentReminder: 0.6,
		nudge.TypeMissingLog:          0.3,
		nudge.TypeSymptomFollowup:     0.25,
		nudge.TypeSleepDeficit:        0.2,
		nudge.TypeDecliningScore:      0.15,
		nudge.TypeImprovingScore:      0.1,
		nudge.TypeStreakCelebration:   0.05,
		nudge.TypeConsistencyTip:      0.0,
		nudge.TypeMoodSupport:         -0.1,
		nudge.TypeGeneralCheckin:      -0.2,
	}
}

// HeuristicStrategy is the guaranteed baseline scorer. It never returns an
// error, so a chain ending in it always produces probabilities.
type HeuristicStrategy struct {
	weights Weights
	bias    map[nudge.Type]float64
	version string
}

// NewHeuristicStrategy creates the cold-start scorer with default priors.
func NewHeuristicStrategy() *HeuristicStrategy {
	return &HeuristicStrategy{
		weights: DefaultWeights(),
		bias:    DefaultTypeBias(),
		version: "heuristic-v1",
	}
}

func (s *HeuristicStrategy) Name() string { return "heuristic" }

// Score computes sigmoid(linear(v) + bias[type]) for each candidate type.
// It never fails, which makes it the guaranteed end of any chain.
func (s *HeuristicStrategy) Score(_ context.Context, v features.Vector, types []nudge.Type) (*Scores, error) {
	base := linearScore(v, s.weights)
	probs := make(map[nudge.Type]float64, len(types))
	for _, t := range types {
		probs[t] = sigmoid(base + s.bias[t])
	}
	return &Scores{Probabilities: probs, ModelVersion: s.version}, nil
}

func linearScore(v features.Vector, w Weights) float64 {
	score := w.Intercept
	score += w.PrevSuccessRate * v.PreviousNudgeSuccessRate
	score += w.LoggingConsistency * v.LoggingConsistency
	score += w.DaysSinceInteraction * v.DaysSinceLastInteraction
	score += w.DaysSinceLog * v.DaysSinceLastLog
	score += w.Urgency * (100 - v.HealthScore) / 100
	if v.IsWeekend {
		score += w.Weekend
	}
	if v.HourOfDay >= 6 && v.HourOfDay <= 10 {
		score += w.MorningHours
	}
	if v.HourOfDay >= 18 && v.HourOfDay <= 21 {
		score += w.EveningHours
	}
	return score
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
