// Package kafka adapts segmentio/kafka-go to the event source, publisher and
// dead-letter ports.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"wallet-service/config"
	"wallet-service/internal/core/ports"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafkago.Reader the source needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Connector opens consumer-group readers on the transaction topic.
type Connector struct {
	cfg         config.KafkaConfig
	ensureTopic bool
	log         zerolog.Logger

	mu           sync.Mutex
	topicChecked bool

	dial      func(ctx context.Context, network, address string) (*kafkago.Conn, error)
	newReader func(kafkago.ReaderConfig) messageReader
}

// NewConnector creates a Connector. Outside production the transaction topic is
// created on first connect if the cluster does not have it yet.
func NewConnector(cfg config.KafkaConfig, production bool, log zerolog.Logger) *Connector {
	return &Connector{
		cfg:         cfg,
		ensureTopic: !production,
		log:         log,
		dial:        kafkago.DialContext,
		newReader: func(rc kafkago.ReaderConfig) messageReader {
			return kafkago.NewReader(rc)
		},
	}
}

// Connect probes the brokers, bootstraps the topic when enabled, and returns a
// fresh group reader. New groups start at the latest offset.
func (c *Connector) Connect(ctx context.Context) (ports.EventSource, error) {
	if len(c.cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	conn, err := c.dial(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial kafka %s: %w", c.cfg.Brokers[0], err)
	}
	defer conn.Close()

	if err := c.bootstrapTopic(ctx, conn); err != nil {
		return nil, err
	}

	reader := c.newReader(kafkago.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.cfg.GroupID,
		Topic:       c.cfg.TransactionTopic,
		StartOffset: kafkago.LastOffset,
		Dialer:      &kafkago.Dialer{ClientID: c.cfg.ClientID},
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			c.log.Warn().Msgf(msg, args...)
		}),
	})

	return &Source{reader: reader}, nil
}

func (c *Connector) bootstrapTopic(ctx context.Context, conn *kafkago.Conn) error {
	if !c.ensureTopic {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topicChecked {
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	ctrlConn, err := c.dial(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             c.cfg.TransactionTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", c.cfg.TransactionTopic, err)
	}

	c.log.Info().Str("topic", c.cfg.TransactionTopic).Msg("transaction topic ready")
	c.topicChecked = true
	return nil
}

// Source implements ports.EventSource over a group reader.
type Source struct {
	reader messageReader
}

// Fetch blocks for the next message without committing it.
func (s *Source) Fetch(ctx context.Context) (ports.Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return ports.Message{}, err
	}
	return toPortMessage(m), nil
}

// Commit marks msg and everything before it on its partition as consumed.
func (s *Source) Commit(ctx context.Context, msg ports.Message) error {
	return s.reader.CommitMessages(ctx, kafkago.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (s *Source) Close() error {
	return s.reader.Close()
}

func toPortMessage(m kafkago.Message) ports.Message {
	return ports.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}
}
