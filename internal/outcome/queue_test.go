package outcome

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nudge-engine/internal/scoring"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

func TestPublishAndConsumeActionSignal(t *testing.T) {
	ctx := context.Background()
	store := newFakeEventStore()
	tr := newTestTracker(store)
	queue := NewMemoryQueue(8)
	pub := NewPublisher(queue)
	consumer := NewConsumer(queue, tr, logging.New("error"))

	sentAt := time.Now().UTC().Add(-time.Hour)
	e := recordTestEvent(t, tr, scoring.ModeExploit, sentAt)

	require.NoError(t, pub.PublishAction(ctx, Ref{NudgeID: e.NudgeID}, ActionClicked, sentAt.Add(10*time.Minute)))

	applied, err := consumer.ProcessOnce(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	got, err := store.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionClicked, got.Outcome.ActionType)
	require.NotNil(t, got.Outcome.ResponseTimeMs)
	assert.Equal(t, int64(600_000), *got.Outcome.ResponseTimeMs)
}

func TestConsumeAppliesEachSignalKind(t *testing.T) {
	ctx := context.Background()
	store := newFakeEventStore()
	tr := newTestTracker(store)
	queue := NewMemoryQueue(8)
	pub := NewPublisher(queue)
	consumer := NewConsumer(queue, tr, logging.New("error"))

	e := recordTestEvent(t, tr, scoring.ModeExploit, time.Now().UTC().Add(-time.Hour))
	ref := Ref{EventID: e.ID}

	require.NoError(t, pub.PublishView(ctx, ref, time.Now().UTC()))
	require.NoError(t, pub.PublishCompleted(ctx, ref, true))
	require.NoError(t, pub.PublishHealthScore(ctx, ref, 80))
	require.NoError(t, pub.PublishFeedback(ctx, ref, "helpful"))

	applied, err := consumer.ProcessOnce(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, applied)

	got, err := store.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Outcome.ViewedAt)
	require.NotNil(t, got.Outcome.CompletedIntendedAction)
	assert.True(t, *got.Outcome.CompletedIntendedAction)
	require.NotNil(t, got.Outcome.HealthScoreDelta)
	assert.InDelta(t, 10.0, *got.Outcome.HealthScoreDelta, 1e-9) // baseline snapshot is 70
	assert.Equal(t, "helpful", got.Outcome.Feedback)
}

func TestConsumeDropsMalformedAndUnknownMessages(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(8)
	tr := newTestTracker(newFakeEventStore())
	consumer := NewConsumer(queue, tr, logging.New("error"))

	// A raw body bypasses Send's typed encoding; external producers can put
	// anything on the real queue.
	queue.ch <- queueMessage{ID: "m1", Body: "{not json", ReceiptHandle: "r1"}
	require.NoError(t, queue.Send(ctx, queuePayload{ID: "x", Kind: "mystery"}))

	applied, err := consumer.ProcessOnce(ctx, 10, 0)
	require.NoError(t, err)
	// The unknown kind is applied as a logged no-op; the malformed body is
	// dropped without being counted.
	assert.Equal(t, 1, applied)

	// Queue must be empty either way.
	msgs, err := queue.Receive(ctx, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPublishEncodesTypedPayloadWithID(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(1)
	pub := NewPublisher(queue)

	eventID := uuid.New()
	require.NoError(t, pub.PublishFeedback(ctx, Ref{EventID: eventID}, "helpful"))

	msgs, err := queue.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Body), &payload))
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, signalFeedback, payload.Kind)
	assert.Equal(t, eventID, payload.EventID)
	assert.Equal(t, "helpful", payload.Feedback)
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	queue := NewMemoryQueue(1)
	start := time.Now()
	msgs, err := queue.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}
