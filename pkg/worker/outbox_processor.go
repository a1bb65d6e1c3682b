package worker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/messaging"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the number of publish attempts within one poll.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxDeliveries is the number of polls an event may fail before it is
	// marked failed.
	MaxDeliveries int
}

type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("RetryDelay must be greater than 0")
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = 1
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessEvents relays one batch of due events and returns how many were
// published. Claimed rows stay locked until the batch transaction ends.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.store.WithTx(ctx, func(tx repository.Store) error {
		events, err := tx.Outbox().GetPendingEventsWithLock(ctx, p.config.BatchSize, p.now())
		if err != nil {
			return err
		}
		p.metrics.OutboxQueueSize.Set(float64(len(events)))

		for _, event := range events {
			ok, err := p.processEvent(ctx, tx, event)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	if err != nil {
		return published, fmt.Errorf("failed to process outbox batch: %w", err)
	}
	return published, nil
}

// processEvent publishes one event and records the outcome. Only a failure to
// record the outcome is returned as an error.
func (p *OutboxProcessor) processEvent(ctx context.Context, tx repository.Store, event *model.OutboxEvent) (bool, error) {
	msg := messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}
	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, msg)
	})

	if err != nil {
		errStr := err.Error()
		status := model.OutboxStatusRetry
		var retryAt *time.Time
		if event.RetryCount+1 >= p.config.MaxDeliveries {
			status = model.OutboxStatusFailed
			p.metrics.OutboxEventsFailed.Inc()
		} else {
			at := p.now().Add(backoff(p.config.RetryDelay, event.RetryCount))
			retryAt = &at
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}

		p.logger.Error(err, "Failed to publish event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"status", string(status))

		if updateErr := tx.Outbox().UpdateStatus(ctx, event.ID, status, &errStr, retryAt); updateErr != nil {
			return false, updateErr
		}
		return false, nil
	}

	if err := tx.Outbox().UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		return false, err
	}
	p.metrics.OutboxEventsProcessed.Inc()
	return true, nil
}

func backoff(base time.Duration, retries int) time.Duration {
	return time.Duration(float64(base) * math.Pow(2, float64(retries)))
}

// Helper retry function
func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
