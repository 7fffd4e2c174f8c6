package config

import "github.com/kbukum/batchkit/validation"

// BaseConfig carries the identity fields every batchkit binary needs,
// independent of what it trains or serves.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults fills unset fields. Development runs get debug output.
func (c *BaseConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
}

// Validate checks the identity fields.
func (c *BaseConfig) Validate() error {
	v := validation.New().
		Required("base.name", c.Name).
		Required("base.environment", c.Environment).
		OneOf("base.environment", c.Environment, []string{"development", "staging", "production"})
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
