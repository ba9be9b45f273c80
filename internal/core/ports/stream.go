package ports

//go:generate mockgen -source=stream.go -destination=mocks/mock_stream.go -package=mocks

import (
	"context"
	"time"
)

// Message is one record delivered by the event stream.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// EventSource delivers messages and accepts offset commits. Fetch blocks until a
// message is available or ctx is done.
type EventSource interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// SourceConnector opens a fresh EventSource. It is called again after the
// previous source fails.
type SourceConnector interface {
	Connect(ctx context.Context) (EventSource, error)
}
