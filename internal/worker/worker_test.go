package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

type fakeExpirer struct {
	marked int
	calls  atomic.Int32
	err    error
}

func (f *fakeExpirer) MarkExpiredNudges(_ context.Context) (int, error) {
	f.calls.Add(1)
	return f.marked, f.err
}

type fakeNudgeExpirer struct {
	ids   []uuid.UUID
	calls atomic.Int32
	err   error
}

func (f *fakeNudgeExpirer) ExpireOpenBefore(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	f.calls.Add(1)
	return f.ids, f.err
}

func TestSweepOnceMarksBothStores(t *testing.T) {
	events := &fakeExpirer{marked: 2}
	nudges := &fakeNudgeExpirer{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	s := NewExpirySweeper(events, nudges, time.Hour, nil, logging.New("error"))

	s.SweepOnce(context.Background())
	assert.Equal(t, int32(1), events.calls.Load())
	assert.Equal(t, int32(1), nudges.calls.Load())
}

func TestSweepOnceContinuesPastEventError(t *testing.T) {
	events := &fakeExpirer{err: errors.New("db down")}
	nudges := &fakeNudgeExpirer{}
	s := NewExpirySweeper(events, nudges, time.Hour, nil, logging.New("error"))

	s.SweepOnce(context.Background())
	assert.Equal(t, int32(1), nudges.calls.Load())
}

func TestSweeperStartSweepsImmediatelyAndStops(t *testing.T) {
	events := &fakeExpirer{}
	s := NewExpirySweeper(events, nil, time.Hour, nil, logging.New("error"))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return events.calls.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	s.Wait()
}

type fakeProcessor struct {
	calls atomic.Int32
	err   error
}

func (f *fakeProcessor) ProcessOnce(ctx context.Context, _, _ int) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	return 1, nil
}

func TestOutcomeWorkerProcessesUntilCancelled(t *testing.T) {
	p := &fakeProcessor{}
	w := NewOutcomeWorker(p, logging.New("error"), WithWorkerCount(2), WithReceiveWait(1), WithBatchSize(5))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.Eventually(t, func() bool {
		return p.calls.Load() >= 4
	}, time.Second, 10*time.Millisecond)

	cancel()
	w.Wait()
}

func TestOutcomeWorkerStopsOnContextCanceledError(t *testing.T) {
	p := &fakeProcessor{err: context.Canceled}
	w := NewOutcomeWorker(p, logging.New("error"))

	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context.Canceled")
	}
}
