// Package config provides configuration loading and validation for batchkit
// applications.
//
// It uses Viper to load configuration from files and environment variables,
// supporting multiple formats (YAML, JSON, TOML) and environment-specific
// overrides.
//
// # Usage
//
//	var cfg TrainerConfig
//	err := config.LoadConfig("trainer", &cfg)
//
// Environment variables override file values; UPPER_CASE_WITH_UNDERSCORES
// names are bound to nested keys (e.g., RUN_BATCH_SIZE -> run.batch_size).
package config
