// Package logger provides structured logging for batchkit
// using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
//
// # Configuration
//
//	logger:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Info("run finished", logger.Fields(logger.FieldRunID, id))
package logger
