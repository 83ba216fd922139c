package scoring

import (
	"context"
	"math/rand"
	"sort"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/risk"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// Selection modes.
const (
	ModeExplore = "explore"
	ModeExploit = "exploit"
)

// CandidateScore pairs a nudge type with its scored action probability.
type CandidateScore struct {
	NudgeType   nudge.Type `json:"nudge_type"`
	Probability float64    `json:"probability"`
}

// SelectedNudge is the winning candidate.
type SelectedNudge struct {
	Type        nudge.Type     `json:"type"`
	Priority    nudge.Priority `json:"priority"`
	Probability float64        `json:"probability"`
}

// SelectionResult is the immutable outcome of one selection. The outcome
// tracker snapshots it verbatim into the event ledger.
type SelectionResult struct {
	SelectedNudge      SelectedNudge    `json:"selected_nudge"`
	AllCandidateScores []CandidateScore `json:"all_candidate_scores"`
	SelectionMode      string           `json:"selection_mode"`
	// Strategy is the chain stage that produced the probabilities. Bounded
	// set of values, safe as a metrics label; ModelVersion is not.
	Strategy     string `json:"strategy"`
	ModelVersion string `json:"model_version"`
}

// Options tune a single selection.
type Options struct {
	// ForceExplore makes the selector explore whenever exploration is valid
	// (two or more candidates). Used by the debug entry point.
	ForceExplore bool
}

// Selector runs the scoring chain and applies an epsilon-greedy policy over
// the scored candidates.
type Selector struct {
	chain           []Strategy
	explorationRate float64
	logger          *logging.Logger

	// Injected for deterministic tests; default to math/rand.
	randFloat func() float64
	randIntn  func(n int) int
}

// NewSelector builds a selector over an ordered strategy chain. The chain
// should end with the heuristic so scoring always succeeds.
func NewSelector(chain []Strategy, explorationRate float64, logger *logging.Logger) *Selector {
	if logger == nil {
		logger = logging.Default()
	}
	if explorationRate < 0 {
		explorationRate = 0
	}
	return &Selector{
		chain:           chain,
		explorationRate: explorationRate,
		logger:          logger,
		randFloat:       rand.Float64,
		randIntn:        rand.Intn,
	}
}

// Select scores the candidates and picks one. Returns nil when there are no
// candidates (no nudge needed) or when every strategy in the chain was
// unavailable.
func (s *Selector) Select(ctx context.Context, v features.Vector, candidates []risk.CandidateNudge, opts Options) *SelectionResult {
	if len(candidates) == 0 {
		return nil
	}

	types := make([]nudge.Type, len(candidates))
	for i, c := range candidates {
		types[i] = c.Type
	}

	scores, strategy := s.runChain(ctx, v, types)
	if scores == nil {
		return nil
	}

	scored := make([]CandidateScore, len(candidates))
	for i, c := range candidates {
		scored[i] = CandidateScore{NudgeType: c.Type, Probability: scores.Probabilities[c.Type]}
	}
	// Descending by probability; ties keep the assessor's original order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Probability > scored[j].Probability
	})

	pick := 0
	mode := ModeExploit
	if len(scored) >= 2 && (opts.ForceExplore || s.randFloat() < s.explorationRate) {
		// Explore among everything except the top-ranked candidate.
		pick = 1 + s.randIntn(len(scored)-1)
		mode = ModeExplore
	}

	selected := scored[pick]
	return &SelectionResult{
		SelectedNudge: SelectedNudge{
			Type:        selected.NudgeType,
			Priority:    priorityFor(candidates, selected.NudgeType),
			Probability: selected.Probability,
		},
		AllCandidateScores: scored,
		SelectionMode:      mode,
		Strategy:           strategy,
		ModelVersion:       scores.ModelVersion,
	}
}

// runChain tries each strategy in order and returns the first result along
// with the name of the strategy that produced it.
func (s *Selector) runChain(ctx context.Context, v features.Vector, types []nudge.Type) (*Scores, string) {
	for _, strategy := range s.chain {
		scores, err := strategy.Score(ctx, v, types)
		if err == nil {
			return scores, strategy.Name()
		}
		s.logger.Warn("scoring: strategy unavailable, falling through",
			"strategy", strategy.Name(), "error", err)
	}
	return nil, ""
}

func priorityFor(candidates []risk.CandidateNudge, t nudge.Type) nudge.Priority {
	for _, c := range candidates {
		if c.Type == t {
			return c.Priority
		}
	}
	return nudge.PriorityLow
}
