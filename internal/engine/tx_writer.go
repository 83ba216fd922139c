package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxSentWriter persists the CareNudge row and its NudgeEvent in a single
// transaction, so the ledger can never hold one without the other.
type TxSentWriter struct {
	db     TxBeginner
	logger *logging.Logger
}

// NewTxSentWriter creates the transactional writer.
func NewTxSentWriter(db TxBeginner, logger *logging.Logger) *TxSentWriter {
	if logger == nil {
		logger = logging.Default()
	}
	return &TxSentWriter{db: db, logger: logger}
}

func (w *TxSentWriter) PersistSent(ctx context.Context, n *nudge.CareNudge, in outcome.RecordSentInput) (*outcome.Event, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: begin persist tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := nudge.NewStore(tx).Create(ctx, n); err != nil {
		return nil, err
	}

	in.NudgeID = n.ID
	tracker := outcome.NewTracker(outcome.NewPostgresStore(tx), w.logger)
	event, err := tracker.RecordSent(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("engine: commit persist tx: %w", err)
	}
	return event, nil
}
