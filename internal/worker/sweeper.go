package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/internal/observability/metrics"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// DefaultSweepInterval is how often the expiry sweep runs.
const DefaultSweepInterval = time.Hour

// eventExpirer marks stale ledger events expired.
type eventExpirer interface {
	MarkExpiredNudges(ctx context.Context) (int, error)
}

// nudgeExpirer closes out the matching care-nudge rows.
type nudgeExpirer interface {
	ExpireOpenBefore(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// ExpirySweeper periodically transitions unanswered nudges and their ledger
// events to the expired state, so neither table accumulates permanently open
// rows.
type ExpirySweeper struct {
	tracker  eventExpirer
	nudges   nudgeExpirer
	interval time.Duration
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
	wg       sync.WaitGroup
}

// NewExpirySweeper creates the sweeper.
func NewExpirySweeper(tracker eventExpirer, nudges nudgeExpirer, interval time.Duration, m *metrics.EngineMetrics, logger *logging.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ExpirySweeper{tracker: tracker, nudges: nudges, interval: interval, metrics: m, logger: logger}
}

// Start runs the sweep loop until ctx is cancelled. The first sweep happens
// immediately so a restarted service catches up without waiting an interval.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.SweepOnce(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("expiry sweeper stopping")
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the sweep loop exits.
func (s *ExpirySweeper) Wait() {
	s.wg.Wait()
}

// SweepOnce runs a single sweep pass. Errors are logged, not returned: the
// next tick retries.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	marked, err := s.tracker.MarkExpiredNudges(ctx)
	if err != nil {
		s.logger.Error("expiry sweep: marking ledger events failed", "error", err)
	} else {
		s.metrics.ObserveSweep(marked)
	}

	if s.nudges == nil {
		return
	}
	expired, err := s.nudges.ExpireOpenBefore(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep: expiring care nudges failed", "error", err)
		return
	}
	if len(expired) > 0 {
		s.logger.Info("expiry sweep: care nudges expired", "count", len(expired))
	}
}
