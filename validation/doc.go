// Package validation provides input validation utilities for batchkit.
//
// It supports both struct tag validation (using the validator library)
// and programmatic validation with error collection. Struct tag
// validation is what run configurations use.
//
// # Struct Tag Validation
//
//	type RunConfig struct {
//	    BatchSize int `validate:"gt=0"`
//	    Prefetch  int `validate:"gte=0"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", name).Min("prefetch", prefetch, 0)
//	err := v.Validate()
package validation
