package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "none", cfg.Broker.Type)
	assert.Equal(t, float64(2000), cfg.IoT.DrainTriggerML)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CAPD_SERVER_PORT", "9090")
	t.Setenv("CAPD_DATABASE_DRIVER", "mysql")
	t.Setenv("CAPD_IOT_DRAIN_TRIGGER_ML", "1800")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, float64(1800), cfg.IoT.DrainTriggerML)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("database:\n  driver: memory\nbroker:\n  type: kafka\n  kafka:\n    brokers: [\"k1:9092\", \"k2:9092\"]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "kafka", cfg.Broker.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.Database.Driver = "sqlite"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Auth.Enabled = true
	bad.Auth.Secret = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Broker.Type = "nats"
	assert.Error(t, bad.Validate())
}
