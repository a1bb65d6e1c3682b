package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/jwalitptl/capd-api/pkg/circuitbreaker"
	"github.com/jwalitptl/capd-api/pkg/messaging"
)

type Config struct {
	Brokers     []string
	TopicPrefix string
	GroupID     string
}

// KafkaBroker publishes every channel to the topic TopicPrefix+channel.
type KafkaBroker struct {
	cfg    Config
	writer *kafka.Writer
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

func NewKafkaBroker(cfg Config, logger *zerolog.Logger) (messaging.Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	return &KafkaBroker{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "kafka-broker",
			MaxFailures: 5,
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
		}),
		logger: logger,
	}, nil
}

func (b *KafkaBroker) Topic(channel string) string {
	return b.cfg.TopicPrefix + channel
}

func (b *KafkaBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Topic: b.Topic(channel),
		Value: value,
	}
	if m, ok := message.(messaging.Message); ok {
		msg.Key = []byte(m.ID)
	}

	return b.cb.Execute(func() error {
		return b.writer.WriteMessages(ctx, msg)
	})
}

func (b *KafkaBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.cfg.Brokers,
		Topic:   b.Topic(channel),
		GroupID: b.cfg.GroupID,
	})
	msgChan := make(chan []byte, 100)

	go func() {
		defer func() {
			reader.Close()
			close(msgChan)
		}()

		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				b.logger.Error().Err(err).Str("topic", b.Topic(channel)).Msg("Failed to read kafka message")
				continue
			}
			select {
			case msgChan <- msg.Value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
