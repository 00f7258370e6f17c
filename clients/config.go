package clients

import "fmt"

// ServiceConfig points one backend client at its upstream service.
type ServiceConfig struct {
	// BaseURL is the service root, e.g. "https://models.internal:8443".
	// An empty BaseURL leaves the service unconfigured.
	BaseURL string `mapstructure:"base_url"`

	// APIKey is sent as a bearer token on every request.
	APIKey string `mapstructure:"api_key"`

	// Model is the default model name, for services that take one.
	Model string `mapstructure:"model"`
}

func (c ServiceConfig) enabled() bool {
	return c.BaseURL != ""
}

// Config holds the upstream endpoints for all node backends.
type Config struct {
	Model      ServiceConfig `mapstructure:"model"`
	Embeddings ServiceConfig `mapstructure:"embeddings"`
	Guru       ServiceConfig `mapstructure:"guru"`
	Vector     ServiceConfig `mapstructure:"vector"`
}

// Validate checks that configured services have usable endpoints.
func (c *Config) Validate() error {
	for name, svc := range map[string]ServiceConfig{
		"model":      c.Model,
		"embeddings": c.Embeddings,
		"guru":       c.Guru,
		"vector":     c.Vector,
	} {
		if svc.APIKey != "" && svc.BaseURL == "" {
			return fmt.Errorf("clients.%s: api_key set without base_url", name)
		}
	}
	return nil
}
