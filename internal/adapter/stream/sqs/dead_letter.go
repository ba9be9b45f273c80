// Package sqs stores dead-lettered events on an AWS SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wallet-service/internal/core/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SendAPI is the part of *sqs.Client the queue uses.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DeadLetterQueue implements ports.DeadLetterSink.
type DeadLetterQueue struct {
	client   SendAPI
	queueURL string
}

// NewDeadLetterQueue creates a new DeadLetterQueue.
func NewDeadLetterQueue(client SendAPI, queueURL string) *DeadLetterQueue {
	return &DeadLetterQueue{
		client:   client,
		queueURL: queueURL,
	}
}

var _ ports.DeadLetterSink = (*DeadLetterQueue)(nil)

// envelope is the SQS message body. Payload keeps the original event bytes.
type envelope struct {
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key,omitempty"`
	Payload   string    `json:"payload"`
}

// Send enqueues letter with its source coordinates as message attributes.
func (q *DeadLetterQueue) Send(ctx context.Context, letter ports.DeadLetter) error {
	msg := letter.Message
	body, err := json.Marshal(envelope{
		Reason:    letter.Reason,
		Attempts:  letter.Attempts,
		FailedAt:  letter.FailedAt.UTC(),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Payload:   string(msg.Value),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter for SQS: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"source_topic": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Topic),
			},
			"source_offset": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(msg.Offset, 10)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send dead letter to SQS: %w", err)
	}
	return nil
}
