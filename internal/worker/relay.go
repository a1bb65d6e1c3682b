package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/capd-api/internal/config"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/messaging"
	"github.com/jwalitptl/capd-api/pkg/messaging/kafka"
	"github.com/jwalitptl/capd-api/pkg/messaging/redis"
	"github.com/jwalitptl/capd-api/pkg/metrics"
	outbox "github.com/jwalitptl/capd-api/pkg/worker"
)

// NewBroker builds the broker selected by broker.type. "none" logs events
// instead of publishing them.
func NewBroker(ctx context.Context, cfg config.BrokerConfig, log *logger.Logger) (messaging.Broker, error) {
	switch cfg.Type {
	case "", "none":
		return messaging.NewLogBroker(log.Zerolog()), nil
	case "redis":
		return redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log.Zerolog())
	case "kafka":
		return kafka.NewKafkaBroker(kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Kafka.TopicPrefix,
			GroupID:     cfg.Kafka.GroupID,
		}, log.Zerolog())
	default:
		return nil, fmt.Errorf("unsupported broker type %q", cfg.Type)
	}
}

// Relay drains the outbox into broker and prunes relayed rows until ctx is
// cancelled.
type Relay struct {
	processor *outbox.OutboxProcessor
	cleanup   *OutboxCleanupWorker
}

func NewRelay(store repository.Store, broker messaging.Broker, cfg config.OutboxConfig, log *logger.Logger, m *metrics.Metrics) (*Relay, error) {
	processor, err := outbox.NewOutboxProcessor(store, broker, outbox.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxDeliveries: cfg.MaxDeliveries,
	}, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox processor: %w", err)
	}
	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("outbox.cleanup_interval must be positive")
	}
	return &Relay{
		processor: processor,
		cleanup:   NewOutboxCleanupWorker(store.Outbox(), cfg.Retention, cfg.CleanupInterval, m),
	}, nil
}

// Run blocks until both loops have returned.
func (r *Relay) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		r.cleanup.Start(ctx)
	}()
	wg.Wait()
}
