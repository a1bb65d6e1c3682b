package messaging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogBroker(t *testing.T) {
	logger := zerolog.Nop()
	b := NewLogBroker(&logger)

	assert.NoError(t, b.Publish(context.Background(), "treatment.completed", Message{Type: "treatment.completed"}))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "treatment.completed")
	assert.NoError(t, err)
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, b.Close())
}
