package scoring

import (
	"context"
	"errors"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// ErrUnavailable signals that a strategy cannot score right now and the
// chain should fall through to the next one. Anything else returned by a
// strategy is treated the same way but logged as a warning.
var ErrUnavailable = errors.New("scoring: strategy unavailable")

// Scores is one strategy's output for one run: a probability per candidate
// type plus the version of the model that produced them.
type Scores struct {
	Probabilities map[nudge.Type]float64
	ModelVersion  string
}

// Strategy scores candidate nudge types against a feature vector. Pipeline
// runs for different patients execute concurrently, so implementations must
// be safe for concurrent use.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	Score(ctx context.Context, v features.Vector, types []nudge.Type) (*Scores, error)
}
