package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, payload queuePayload) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type signalKind string

const (
	signalView      signalKind = "view"
	signalAction    signalKind = "action"
	signalCompleted signalKind = "completed"
	signalHealth    signalKind = "health_score"
	signalFeedback  signalKind = "feedback"
)

// queuePayload is the wire format for asynchronous outcome signals. Clients
// and downstream services publish these; the worker applies them through the
// tracker.
type queuePayload struct {
	ID          string     `json:"id"`
	Kind        signalKind `json:"kind"`
	EventID     uuid.UUID  `json:"event_id,omitempty"`
	NudgeID     uuid.UUID  `json:"nudge_id,omitempty"`
	ObservedAt  time.Time  `json:"observed_at,omitempty"`
	ActionType  ActionType `json:"action_type,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	HealthScore float64    `json:"health_score,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
}

func (p queuePayload) ref() Ref {
	return Ref{EventID: p.EventID, NudgeID: p.NudgeID}
}

func (p queuePayload) encode() (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("outcome: failed to encode payload: %w", err)
	}
	return string(body), nil
}

// Publisher puts outcome signals on the queue so the HTTP path never blocks
// on ledger writes it does not need synchronously.
type Publisher struct {
	queue queueClient
}

// NewPublisher wraps a queue client.
func NewPublisher(queue queueClient) *Publisher {
	return &Publisher{queue: queue}
}

func (p *Publisher) publish(ctx context.Context, payload queuePayload) error {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	return p.queue.Send(ctx, payload)
}

// PublishView enqueues a view signal.
func (p *Publisher) PublishView(ctx context.Context, ref Ref, observedAt time.Time) error {
	return p.publish(ctx, queuePayload{Kind: signalView, EventID: ref.EventID, NudgeID: ref.NudgeID, ObservedAt: observedAt})
}

// PublishAction enqueues an action signal.
func (p *Publisher) PublishAction(ctx context.Context, ref Ref, action ActionType, observedAt time.Time) error {
	return p.publish(ctx, queuePayload{Kind: signalAction, EventID: ref.EventID, NudgeID: ref.NudgeID, ActionType: action, ObservedAt: observedAt})
}

// PublishCompleted enqueues an intended-action completion signal.
func (p *Publisher) PublishCompleted(ctx context.Context, ref Ref, completed bool) error {
	return p.publish(ctx, queuePayload{Kind: signalCompleted, EventID: ref.EventID, NudgeID: ref.NudgeID, Completed: completed})
}

// PublishHealthScore enqueues a delayed health-score reading.
func (p *Publisher) PublishHealthScore(ctx context.Context, ref Ref, score float64) error {
	return p.publish(ctx, queuePayload{Kind: signalHealth, EventID: ref.EventID, NudgeID: ref.NudgeID, HealthScore: score})
}

// PublishFeedback enqueues patient feedback text.
func (p *Publisher) PublishFeedback(ctx context.Context, ref Ref, feedback string) error {
	return p.publish(ctx, queuePayload{Kind: signalFeedback, EventID: ref.EventID, NudgeID: ref.NudgeID, Feedback: feedback})
}

// Consumer drains the outcome queue and applies each signal through the
// tracker. Unknown or malformed messages are deleted so they cannot poison
// the queue; tracker failures leave the message for redelivery.
type Consumer struct {
	queue   queueClient
	tracker *Tracker
	logger  *logging.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(queue queueClient, tracker *Tracker, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{queue: queue, tracker: tracker, logger: logger}
}

// ProcessOnce receives one batch and applies it. Returns the number of
// successfully applied messages.
func (c *Consumer) ProcessOnce(ctx context.Context, maxMessages, waitSeconds int) (int, error) {
	msgs, err := c.queue.Receive(ctx, maxMessages, waitSeconds)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, msg := range msgs {
		var payload queuePayload
		if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
			c.logger.Error("outcome: dropping malformed queue message", "message_id", msg.ID, "error", err)
			_ = c.queue.Delete(ctx, msg.ReceiptHandle)
			continue
		}

		if err := c.apply(ctx, payload); err != nil {
			c.logger.Error("outcome: failed to apply signal, leaving for retry",
				"message_id", msg.ID, "kind", string(payload.Kind), "error", err)
			continue
		}

		if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			c.logger.Error("outcome: failed to delete queue message", "message_id", msg.ID, "error", err)
		}
		applied++
	}
	return applied, nil
}

func (c *Consumer) apply(ctx context.Context, payload queuePayload) error {
	var err error
	switch payload.Kind {
	case signalView:
		_, err = c.tracker.RecordView(ctx, payload.ref(), payload.ObservedAt)
	case signalAction:
		_, err = c.tracker.RecordAction(ctx, payload.ref(), payload.ActionType, payload.ObservedAt)
	case signalCompleted:
		_, err = c.tracker.RecordActionCompleted(ctx, payload.ref(), payload.Completed)
	case signalHealth:
		_, err = c.tracker.RecordHealthScoreImpact(ctx, payload.ref(), payload.HealthScore)
	case signalFeedback:
		_, err = c.tracker.RecordFeedback(ctx, payload.ref(), payload.Feedback)
	default:
		c.logger.Warn("outcome: dropping signal of unknown kind", "kind", string(payload.Kind))
	}
	return err
}
