package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 50.0, cfg.InitialRadiusKm)
	assert.Equal(t, 25.0, cfg.RadiusIncrementKm)
	assert.Equal(t, 500.0, cfg.MaxRadiusKm)
	assert.Equal(t, 10, cfg.InitialBatch)
	assert.Equal(t, 5, cfg.ExpandBatch)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("INITIAL_RADIUS_KM", "10")
	t.Setenv("INITIAL_BATCH", "3")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10.0, cfg.InitialRadiusKm)
	assert.Equal(t, 3, cfg.InitialBatch)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	t.Setenv("INITIAL_BATCH", "ten")
	t.Setenv("MAX_RADIUS_KM", "wide")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.InitialBatch)
	assert.Equal(t, 500.0, cfg.MaxRadiusKm)
}
