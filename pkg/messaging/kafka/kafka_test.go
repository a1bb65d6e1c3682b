package kafka

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaBroker(t *testing.T) {
	logger := zerolog.Nop()

	_, err := NewKafkaBroker(Config{}, &logger)
	assert.Error(t, err)

	broker, err := NewKafkaBroker(Config{Brokers: []string{"localhost:9092"}, TopicPrefix: "capd."}, &logger)
	require.NoError(t, err)
	defer broker.Close()

	assert.Equal(t, "capd.drain_color.alert", broker.(*KafkaBroker).Topic("drain_color.alert"))
}
