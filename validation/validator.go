package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/batchkit/errors"
)

// FieldError is one failed check, attributed to a field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates field checks and reports them in one error.
// Checks chain; a zero failing check leaves the validator clean.
type Validator struct {
	errors []FieldError
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

// AddError records a failed check against field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validator) fail(field, format string, args ...any) *Validator {
	v.AddError(field, fmt.Sprintf(format, args...))
	return v
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the accumulated field errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate folds the accumulated failures into a single AppError, or
// nil when every check passed. The per-field breakdown rides along in
// Details.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = e.Field + ": " + e.Message
	}
	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{"fields": v.errors}
	return appErr
}

// Required fails when value is empty or whitespace.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.fail(field, "is required")
	}
	return v
}

// RequiredUUID fails unless value parses to a non-nil UUID.
func (v *Validator) RequiredUUID(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.fail(field, "is required")
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return v.fail(field, "must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return v.fail(field, "must not be empty")
	}
	return v
}

// OptionalUUID fails only when a non-empty value does not parse.
func (v *Validator) OptionalUUID(field, value string) *Validator {
	if value == "" {
		return v
	}
	if _, err := uuid.Parse(value); err != nil {
		return v.fail(field, "must be a valid UUID")
	}
	return v
}

// MaxLength fails when value exceeds maxLen bytes.
func (v *Validator) MaxLength(field, value string, maxLen int) *Validator {
	if len(value) > maxLen {
		return v.fail(field, "must be %d characters or less", maxLen)
	}
	return v
}

// MinLength fails when value is shorter than minLen bytes.
func (v *Validator) MinLength(field, value string, minLen int) *Validator {
	if len(value) < minLen {
		return v.fail(field, "must be at least %d characters", minLen)
	}
	return v
}

// Range fails when value falls outside [minVal, maxVal].
func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	if value < minVal || value > maxVal {
		return v.fail(field, "must be between %d and %d", minVal, maxVal)
	}
	return v
}

// Min fails when value is below minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		return v.fail(field, "must be at least %d", minVal)
	}
	return v
}

// Max fails when value is above maxVal.
func (v *Validator) Max(field string, value, maxVal int) *Validator {
	if value > maxVal {
		return v.fail(field, "must be %d or less", maxVal)
	}
	return v
}

// Pattern fails when a non-empty value does not match the regex.
func (v *Validator) Pattern(field, value, pattern string) *Validator {
	if value == "" {
		return v
	}
	matched, err := regexp.MatchString(pattern, value)
	if err != nil || !matched {
		return v.fail(field, "does not match required format")
	}
	return v
}

// OneOf fails when a non-empty value is not in allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	return v.fail(field, "must be one of: %s", strings.Join(allowed, ", "))
}

// Custom fails with message when condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		return v.fail(field, message)
	}
	return v
}

// Required checks one field and returns the resulting error, if any.
func Required(field, value string) error {
	if appErr := New().Required(field, value).Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ValidateUUID parses value, reporting failures against field.
func ValidateUUID(field, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, errors.Validation(field + " is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, errors.Validation(field + " must be a valid UUID")
	}
	return id, nil
}
