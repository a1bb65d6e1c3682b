package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/messaging"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	fail      error
	published []messaging.Message
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func newProcessor(t *testing.T, store *memory.Store, broker messaging.Broker, maxDeliveries int) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	p, err := NewOutboxProcessor(store, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
		MaxDeliveries: maxDeliveries,
	}, logger.NewLogger(&logger.Config{Level: logger.ErrorLevel}), m)
	require.NoError(t, err)
	return p, m
}

func addEvent(t *testing.T, store *memory.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	e := &model.OutboxEvent{EventType: eventType, Payload: []byte(`{"treatment_id":1}`)}
	require.NoError(t, store.Outbox().Create(context.Background(), e))
	return e
}

func TestProcessEvents_Publishes(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{}
	p, m := newProcessor(t, store, broker, 3)

	e := addEvent(t, store, model.EventTreatmentCompleted)

	n, err := p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, broker.published, 1)
	assert.Equal(t, e.ID.String(), broker.published[0].ID)
	assert.JSONEq(t, `{"treatment_id":1}`, string(broker.published[0].Payload))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))

	events := store.Events()
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)

	n, err = p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessEvents_RetryThenFail(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{fail: errors.New("broker down")}
	p, m := newProcessor(t, store, broker, 2)

	clock := time.Now()
	p.now = func() time.Time { return clock }

	addEvent(t, store, model.EventDrainColorAlert)

	_, err := p.ProcessEvents(context.Background())
	require.NoError(t, err)
	events := store.Events()
	assert.Equal(t, model.OutboxStatusRetry, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].RetryAt)

	// not due yet
	_, err = p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Events()[0].RetryCount)

	clock = clock.Add(time.Minute)
	_, err = p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, store.Events()[0].Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestNewOutboxProcessor_Validates(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewStore(), &fakeBroker{}, OutboxProcessorConfig{}, logger.NewLogger(nil), nil)
	assert.Error(t, err)
}
