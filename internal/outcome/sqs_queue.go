package outcome

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSQueue implements queueClient backed by AWS/LocalStack SQS.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("outcome: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("outcome: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

// Send encodes the signal and publishes it with its kind exposed as a
// message attribute, so queue consumers and DLQ tooling can filter signals
// without parsing bodies.
func (q *SQSQueue) Send(ctx context.Context, payload queuePayload) error {
	body, err := payload.encode()
	if err != nil {
		return err
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"signal_kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(payload.Kind)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("outcome: failed to send %s signal to SQS: %w", payload.Kind, err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	}

	output, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("outcome: failed to receive SQS messages: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}

	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("outcome: failed to delete SQS message: %w", err)
	}
	return nil
}
