package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Script.Timeout)
	assert.Equal(t, 35*time.Second, cfg.Script.OuterTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SCRIPT_TIMEOUT", "10s")
	t.Setenv("SCRIPT_OUTER_TIMEOUT", "12s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Script.Timeout)
	assert.Equal(t, 12*time.Second, cfg.Script.OuterTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsInvertedTimeouts(t *testing.T) {
	cfg := Default()
	cfg.Script.OuterTimeout = cfg.Script.Timeout
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outer script timeout")
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := Default()
	cfg.Script.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("SCRIPT_TIMEOUT", "not-a-duration")
	cfg := LoadOrDefault()
	assert.Equal(t, 30*time.Second, cfg.Script.Timeout)
}
