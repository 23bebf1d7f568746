package config

import (
	"fmt"
	"os"
	"time"
)

// ModelConfig defines the emotion inference backend.
type ModelConfig struct {
	Provider            string        `mapstructure:"provider"`     // only "tfserving" is supported
	BaseURL             string        `mapstructure:"base_url"`     // model server root, e.g. http://localhost:8501
	BaseURLEnv          string        `mapstructure:"base_url_env"` // environment variable holding the base URL
	Name                string        `mapstructure:"name"`         // served model name
	APIKey              string        `mapstructure:"api_key"`      // optional bearer token
	APIKeyEnv           string        `mapstructure:"api_key_env"`  // environment variable holding the token
	Timeout             time.Duration `mapstructure:"timeout"`
	InputSize           int           `mapstructure:"input_size"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	Breaker             BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls the circuit breaker in front of the model server.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// ResolveEnvVars loads BaseURL and APIKey from their *_env variables.
// Direct values take precedence if already set.
func (c *ModelConfig) ResolveEnvVars() {
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		c.BaseURL = os.Getenv(c.BaseURLEnv)
	}
	if c.APIKeyEnv != "" && c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// Validate checks that the model configuration is usable.
func (c *ModelConfig) Validate() error {
	switch c.Provider {
	case "tfserving":
	default:
		return fmt.Errorf("model: unknown provider %q", c.Provider)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("model: base_url is required (set directly or via %s)", c.BaseURLEnv)
	}
	if c.Name == "" {
		return fmt.Errorf("model: name is required")
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("model: input_size must be positive")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("model: confidence_threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	return nil
}
