package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills in per-source simulator and transport defaults so the
// YAML only has to state what differs from the stock setup.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GRPCHost == "" {
		c.GRPCHost = "0.0.0.0"
	}

	for _, source := range c.Sources {
		if source.Threshold == 0 {
			source.Threshold = 0.000001
		}
		if source.PositionSize == 0 {
			source.PositionSize = 100_000_000
		}
		if source.Kind != "stream" && source.PollInterval == 0 {
			source.PollInterval = models.Duration(5 * time.Second)
		}
		if source.Kind == "stream" {
			if source.ReconnectAttempts == 0 {
				source.ReconnectAttempts = 5
			}
			if source.ReconnectWait == 0 {
				source.ReconnectWait = models.Duration(3 * time.Second)
			}
		}
	}

	if c.NATS.Enabled {
		if c.NATS.ConnectTimeout == 0 {
			c.NATS.ConnectTimeout = models.Duration(5 * time.Second)
		}
		if c.NATS.ReconnectWait == 0 {
			c.NATS.ReconnectWait = models.Duration(2 * time.Second)
		}
		if c.NATS.MaxReconnects == 0 {
			c.NATS.MaxReconnects = 10
		}
		if c.NATS.FlushTimeout == 0 {
			c.NATS.FlushTimeout = models.Duration(3 * time.Second)
		}
		if c.NATS.Serializer == "" {
			c.NATS.Serializer = "json"
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation and checks source and
// NATS sub-configs.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid application port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GRPCPort <= 1024 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port number: %d (must be between 1025 and 65535)", c.GRPCPort)
	}

	if c.Token.Address == "" {
		return fmt.Errorf("initial token address cannot be empty")
	}
	if c.Token.Symbol == "" {
		return fmt.Errorf("initial token symbol cannot be empty")
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, source := range c.Sources {
		if source.Name == "" {
			return fmt.Errorf("source %d: name cannot be empty", i)
		}
		if source.Endpoint == "" {
			return fmt.Errorf("source '%s': endpoint cannot be empty", source.Name)
		}
		switch source.Kind {
		case "stream", "graphql", "rest":
		default:
			return fmt.Errorf("source '%s': unknown kind '%s'", source.Name, source.Kind)
		}
		switch source.QuoteRole {
		case "fast", "slow", "gecko":
		default:
			return fmt.Errorf("source '%s': unknown quote role '%s'", source.Name, source.QuoteRole)
		}
		if source.Threshold < 0 {
			return fmt.Errorf("source '%s': threshold cannot be negative", source.Name)
		}
		if source.CircuitBreakerPct < 0 || source.CircuitBreakerPct >= 1 {
			return fmt.Errorf("source '%s': circuit breaker must be a fraction in [0, 1)", source.Name)
		}
	}

	if c.NATS.Enabled && len(c.NATS.Servers) == 0 {
		return fmt.Errorf("NATS servers list cannot be empty when NATS is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// GetSourceByName returns a single source config by name
func (c *Config) GetSourceByName(name string) *models.MSourceConfig {
	for _, source := range c.Sources {
		if source.Name == name {
			return source
		}
	}
	return nil
}

