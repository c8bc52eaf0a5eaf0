package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8010, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultThreshold(t *testing.T) {
	cfg := Load()

	t.Run("russell universe gets the higher bar", func(t *testing.T) {
		assert.Equal(t, 2.0, cfg.DefaultThreshold("russell2000"))
	})

	t.Run("sp500 and unknown universes get the base threshold", func(t *testing.T) {
		assert.Equal(t, 1.5, cfg.DefaultThreshold("sp500"))
		assert.Equal(t, 1.5, cfg.DefaultThreshold(""))
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects an out-of-range port", func(t *testing.T) {
		cfg := Load()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects a non-positive threshold", func(t *testing.T) {
		cfg := Load()
		cfg.Detector.DefaultThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects an unknown environment", func(t *testing.T) {
		cfg := Load()
		cfg.Environment = "qa"
		assert.Error(t, cfg.Validate())
	})
}
