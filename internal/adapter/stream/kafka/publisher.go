package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the producers need.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a writer for topic. Messages with the same key land on the
// same partition.
func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// Publisher implements ports.UpdatePublisher.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Publisher on w.
func NewPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishWalletUpdated sends event keyed by wallet id so updates for one
// wallet stay ordered.
func (p *Publisher) PublishWalletUpdated(ctx context.Context, event domain.WalletUpdatedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal wallet update: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.WalletID.String()),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish wallet update: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// DeadLetterTopic implements ports.DeadLetterSink by copying the original
// record to a separate topic with the failure attached as headers.
type DeadLetterTopic struct {
	writer messageWriter
}

// NewDeadLetterTopic creates a DeadLetterTopic on w.
func NewDeadLetterTopic(w messageWriter) *DeadLetterTopic {
	return &DeadLetterTopic{writer: w}
}

func (d *DeadLetterTopic) Send(ctx context.Context, letter ports.DeadLetter) error {
	msg := letter.Message
	err := d.writer.WriteMessages(ctx, kafkago.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafkago.Header{
			{Key: "dlq.reason", Value: []byte(letter.Reason)},
			{Key: "dlq.attempts", Value: []byte(strconv.Itoa(letter.Attempts))},
			{Key: "dlq.failed_at", Value: []byte(letter.FailedAt.UTC().Format(time.RFC3339Nano))},
			{Key: "dlq.source_topic", Value: []byte(msg.Topic)},
			{Key: "dlq.source_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			{Key: "dlq.source_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		},
	})
	if err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return nil
}

func (d *DeadLetterTopic) Close() error {
	return d.writer.Close()
}
