package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/config"
	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/messaging"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func TestNewBroker(t *testing.T) {
	b, err := NewBroker(context.Background(), config.BrokerConfig{Type: "none"}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &messaging.LogBroker{}, b)

	_, err = NewBroker(context.Background(), config.BrokerConfig{Type: "amqp"}, quietLogger())
	assert.Error(t, err)
}

func TestNewRelayRejectsBadConfig(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	broker, err := NewBroker(context.Background(), config.BrokerConfig{Type: "none"}, quietLogger())
	require.NoError(t, err)

	_, err = NewRelay(store, broker, config.OutboxConfig{}, quietLogger(), m)
	assert.Error(t, err)

	_, err = NewRelay(store, broker, config.OutboxConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, quietLogger(), m)
	assert.Error(t, err, "cleanup interval is required")
}

func TestRelayPublishesPendingEvents(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType: model.EventTreatmentStarted,
		Payload:   []byte(`{"treatment_id":1}`),
	}))

	broker, err := NewBroker(context.Background(), config.BrokerConfig{Type: "none"}, quietLogger())
	require.NoError(t, err)

	relay, err := NewRelay(store, broker, config.OutboxConfig{
		BatchSize:       10,
		PollInterval:    10 * time.Millisecond,
		RetryAttempts:   1,
		RetryDelay:      time.Millisecond,
		MaxDeliveries:   3,
		Retention:       time.Hour,
		CleanupInterval: time.Hour,
	}, quietLogger(), metrics.NewMetrics(prometheus.NewRegistry(), "test"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		events := store.Events()
		return len(events) == 1 && events[0].Status == model.OutboxStatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
