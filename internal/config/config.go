// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	StrategiesDir string `json:"strategies_dir,omitempty"` // Directory of strategy definition JSON files
	Profile       string `json:"profile,omitempty"`        // Path to applicant profile JSON
	ScreenshotDir string `json:"screenshot_dir,omitempty"` // Directory for failure and captcha screenshots

	// Matching
	FallbackStrategy string `json:"fallback_strategy,omitempty"` // Strategy id used when no domain matches

	// Behavior
	APIKey               string `json:"api_key,omitempty"`                 // Gemini API key for the vision resolver
	DatabaseURL          string `json:"database_url,omitempty"`            // PostgreSQL connection URL for the persistent store
	Headless             bool   `json:"headless,omitempty"`                // Run the browser headless
	Verbose              bool   `json:"verbose,omitempty"`                 // Print detailed debug information
	Watch                bool   `json:"watch,omitempty"`                   // Reload strategy files on change
	DisableAI            bool   `json:"disable_ai,omitempty"`              // Skip the AI automation path entirely
	AIFallbackToStrategy *bool  `json:"ai_fallback_to_strategy,omitempty"` // AI failure falls through to the strategy (default true)

	// Limits
	Concurrency       int `json:"concurrency,omitempty"`         // Maximum jobs applied to in parallel
	ManualCaptchaWait int `json:"manual_captcha_wait,omitempty"` // Seconds to wait for manual captcha resolution
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("config error: 'concurrency' must be non-negative")
	}
	if c.ManualCaptchaWait < 0 {
		return fmt.Errorf("config error: 'manual_captcha_wait' must be non-negative")
	}

	// Validate paths exist (if specified)
	if c.StrategiesDir != "" {
		if info, err := os.Stat(c.StrategiesDir); os.IsNotExist(err) || (err == nil && !info.IsDir()) {
			return fmt.Errorf("config error: strategies directory not found: %s", c.StrategiesDir)
		}
	}
	if c.Profile != "" {
		if _, err := os.Stat(c.Profile); os.IsNotExist(err) {
			return fmt.Errorf("config error: profile file not found: %s", c.Profile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.StrategiesDir == "" {
		result.StrategiesDir = defaults.StrategiesDir
	}
	if result.Profile == "" {
		result.Profile = defaults.Profile
	}
	if result.ScreenshotDir == "" {
		result.ScreenshotDir = defaults.ScreenshotDir
	}
	if result.FallbackStrategy == "" {
		result.FallbackStrategy = defaults.FallbackStrategy
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.ManualCaptchaWait == 0 {
		result.ManualCaptchaWait = defaults.ManualCaptchaWait
	}

	// Pointer fields: nil means unset
	if result.AIFallbackToStrategy == nil {
		result.AIFallbackToStrategy = defaults.AIFallbackToStrategy
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
