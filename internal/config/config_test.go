package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	// Create temp config file
	content := `{
		"strategies_dir": "",
		"fallback_strategy": "generic",
		"api_key": "test-key",
		"concurrency": 3,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "generic", cfg.FallbackStrategy)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_NegativeValues(t *testing.T) {
	cfg := &Config{
		Concurrency: -1,
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}

func TestValidate_MissingStrategiesDir(t *testing.T) {
	cfg := &Config{
		StrategiesDir: "/nonexistent/strategies",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "strategies directory not found")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		StrategiesDir:     t.TempDir(),
		Concurrency:       2,
		ManualCaptchaWait: 60,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestMergeWithDefaults(t *testing.T) {
	fallThru := false
	defaults := Config{
		FallbackStrategy:     "generic",
		APIKey:               "default-key",
		ScreenshotDir:        "shots",
		Concurrency:          2,
		ManualCaptchaWait:    120,
		AIFallbackToStrategy: &fallThru,
	}

	partial := Config{
		APIKey:        "custom-key",
		StrategiesDir: "strategies",
	}

	merged := partial.MergeWithDefaults(defaults)

	// Custom values should be preserved
	assert.Equal(t, "custom-key", merged.APIKey)
	assert.Equal(t, "strategies", merged.StrategiesDir)

	// Default values should fill in empty fields
	assert.Equal(t, "generic", merged.FallbackStrategy)
	assert.Equal(t, "shots", merged.ScreenshotDir)
	assert.Equal(t, 2, merged.Concurrency)
	assert.Equal(t, 120, merged.ManualCaptchaWait)
	require.NotNil(t, merged.AIFallbackToStrategy)
	assert.False(t, *merged.AIFallbackToStrategy)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{
		APIKey:           "key",
		FallbackStrategy: "generic",
	}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "key", merged.APIKey)
	assert.Equal(t, "generic", merged.FallbackStrategy)
}
