package config

import (
	"fmt"

	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/pipeline"
	"github.com/kbukum/batchkit/validation"
)

// ServiceConfig is the top-level configuration of a batchkit binary:
// identity fields, logging, and the run parameters handed to
// Pipeline.GenBatches. Projects embed it and add their own sections.
//
// Example:
//
//	type TrainerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    DatasetDir string `yaml:"dataset_dir" mapstructure:"dataset_dir"`
//	}
type ServiceConfig struct {
	BaseConfig `yaml:",inline" mapstructure:",squash"`

	Logging logger.Config      `yaml:"logging" mapstructure:"logging"`
	Run     pipeline.RunConfig `yaml:"run" mapstructure:"run"`
}

// GetServiceConfig returns the base ServiceConfig. Promoted through
// embedding, so a project config satisfies the loader's expectations
// without extra plumbing.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills unset fields. Override in embedding structs and
// call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	c.BaseConfig.ApplyDefaults()
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = 1
	}
	if c.Run.Workers == "" {
		c.Run.Workers = pipeline.WorkersThreads
	}
}

// Validate checks identity, logging and run fields. Override in
// embedding structs and call c.ServiceConfig.Validate() first.
func (c *ServiceConfig) Validate() error {
	v := validation.New().
		Required("name", c.Name).
		Required("environment", c.Environment).
		OneOf("environment", c.Environment, []string{"development", "staging", "production"}).
		Min("run.batch_size", c.Run.BatchSize, 1).
		Min("run.prefetch", c.Run.Prefetch, 0).
		OneOf("run.workers", string(c.Run.Workers), []string{"threads", "processes"})
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
