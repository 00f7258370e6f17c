package httpclient

import (
	"fmt"
	"time"
)

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts"`

	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration `mapstructure:"backoff"`
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout bounds each attempt end to end.
	Timeout time.Duration `mapstructure:"timeout"`

	// Retry enables retry on connection errors and 5xx/429 responses.
	// Nil disables retries.
	Retry *RetryConfig `mapstructure:"retry"`

	// AuthPresets maps preset names to credentials. Nodes reference presets
	// by name so workflow metadata never carries secrets.
	AuthPresets map[string]AuthPreset `mapstructure:"auth_presets"`

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 10 << 20 // 10 MiB
	}
	if c.Retry != nil {
		if c.Retry.MaxAttempts <= 0 {
			c.Retry.MaxAttempts = 3
		}
		if c.Retry.Backoff <= 0 {
			c.Retry.Backoff = 500 * time.Millisecond
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for name, preset := range c.AuthPresets {
		if err := preset.Validate(); err != nil {
			return fmt.Errorf("httpclient: auth preset %q: %w", name, err)
		}
	}
	return nil
}
