package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope relayed for every domain event.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// LogBroker satisfies Broker when no transport is configured. Published
// messages are only logged.
type LogBroker struct {
	logger *zerolog.Logger
}

func NewLogBroker(logger *zerolog.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.logger.Debug().Str("channel", channel).Interface("message", message).Msg("Event published")
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *LogBroker) Close() error {
	return nil
}
