package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AUTOSAVE_INTERVAL", "")
	t.Setenv("EVENTS_ENABLED", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Session.AutosaveInterval)
	assert.True(t, cfg.Event.Enabled)
	assert.Equal(t, "lms.api.submit_test_attempt", cfg.Backend.SubmitMethod)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTOSAVE_INTERVAL", "45s")
	t.Setenv("MAX_FILE_SIZE", "2048")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BACKEND_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Session.AutosaveInterval)
	assert.Equal(t, int64(2048), cfg.Session.MaxFileSize)
	assert.False(t, cfg.Event.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Event.GetKafkaBrokers())
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
}
