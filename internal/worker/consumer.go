package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
)

// signalProcessor drains one batch of outcome signals.
type signalProcessor interface {
	ProcessOnce(ctx context.Context, maxMessages, waitSeconds int) (int, error)
}

// OutcomeWorker consumes the outcome signal queue and applies updates to the
// event ledger.
type OutcomeWorker struct {
	consumer signalProcessor
	logger   *logging.Logger
	cfg      outcomeWorkerConfig
	wg       sync.WaitGroup
}

type outcomeWorkerConfig struct {
	workers   int
	waitSecs  int
	batchSize int
}

// OutcomeWorkerOption customizes worker behavior.
type OutcomeWorkerOption func(*outcomeWorkerConfig)

// WithWorkerCount sets how many consuming goroutines run.
func WithWorkerCount(n int) OutcomeWorkerOption {
	return func(c *outcomeWorkerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithReceiveWait sets the long-poll wait in seconds.
func WithReceiveWait(secs int) OutcomeWorkerOption {
	return func(c *outcomeWorkerConfig) {
		if secs > 0 && secs <= maxWaitSeconds {
			c.waitSecs = secs
		}
	}
}

// WithBatchSize sets how many messages are received per poll.
func WithBatchSize(n int) OutcomeWorkerOption {
	return func(c *outcomeWorkerConfig) {
		if n > 0 && n <= maxBatchSize {
			c.batchSize = n
		}
	}
}

// NewOutcomeWorker creates the queue worker.
func NewOutcomeWorker(consumer signalProcessor, logger *logging.Logger, opts ...OutcomeWorkerOption) *OutcomeWorker {
	if logger == nil {
		logger = logging.Default()
	}
	cfg := outcomeWorkerConfig{
		workers:   defaultWorkerCount,
		waitSecs:  defaultWaitSeconds,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OutcomeWorker{consumer: consumer, logger: logger, cfg: cfg}
}

// Start launches the consuming goroutines.
func (w *OutcomeWorker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *OutcomeWorker) Wait() {
	w.wg.Wait()
}

func (w *OutcomeWorker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("outcome worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("outcome worker stopping", "worker_id", workerID)
			return
		default:
		}

		applied, err := w.consumer.ProcessOnce(ctx, w.cfg.batchSize, w.cfg.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to process outcome signals", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if applied > 0 {
			w.logger.Debug("outcome signals applied", "count", applied, "worker_id", workerID)
		}
	}
}
