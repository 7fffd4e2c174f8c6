// Package errors provides unified error handling for batchkit.
// It implements structured error types with machine-readable codes,
// retryable detection, and cause chaining.
package errors

import "fmt"

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// CodeOf returns the error code of err if it is an AppError, or
// ErrCodeInternal otherwise.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// --- Composition Error Constructors ---

// IncompatibleSource creates a new AppError for concatenating pipelines
// bound to different sources.
func IncompatibleSource() *AppError {
	return &AppError{
		Code: ErrCodeIncompatibleSource, Message: "Cannot concatenate pipelines bound to different sources.",
		Retryable: false,
	}
}

// EmptyPipeline creates a new AppError for an operator applied to a
// pipeline without actions.
func EmptyPipeline(operator string) *AppError {
	return &AppError{
		Code: ErrCodeEmptyPipeline, Message: fmt.Sprintf("Cannot apply %s to an empty pipeline.", operator),
		Retryable: false,
		Details:   map[string]any{"operator": operator},
	}
}

// InvalidProbability creates a new AppError for a probability outside [0, 1].
func InvalidProbability(proba float64) *AppError {
	return &AppError{
		Code: ErrCodeInvalidProbability, Message: fmt.Sprintf("Probability must be within [0, 1], got %v.", proba),
		Retryable: false,
		Details:   map[string]any{"proba": proba},
	}
}

// NegativeRepeat creates a new AppError for a negative repeat count.
func NegativeRepeat(repeat int) *AppError {
	return &AppError{
		Code: ErrCodeNegativeRepeat, Message: fmt.Sprintf("Repeat count cannot be negative, got %d.", repeat),
		Retryable: false,
		Details:   map[string]any{"repeat": repeat},
	}
}

// UnknownCapability creates a new AppError for an action name no
// registry variant recognizes.
func UnknownCapability(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownCapability, Message: fmt.Sprintf("Capability %q is not registered for any batch variant.", name),
		Retryable: false,
		Details:   map[string]any{"capability": name},
	}
}

// --- Dispatch Error Constructors ---

// CapabilityNotRegistered creates a new AppError for a method that
// exists on a batch but was never registered as an action.
func CapabilityNotRegistered(name, variant string) *AppError {
	return &AppError{
		Code: ErrCodeCapabilityNotRegistered, Message: fmt.Sprintf("Method %q exists on variant %q but is not registered as an action.", name, variant),
		Retryable: false,
		Details:   map[string]any{"capability": name, "variant": variant},
	}
}

// MethodNotFound creates a new AppError for a name absent from a
// batch's whole variant chain.
func MethodNotFound(name, variant string) *AppError {
	return &AppError{
		Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Method %q has not been found on variant %q or its parents.", name, variant),
		Retryable: false,
		Details:   map[string]any{"capability": name, "variant": variant},
	}
}

// --- General Error Constructors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		Retryable: false,
		Details:   map[string]any{"field": field},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long. Please try again.",
		Retryable: true,
		Details:   map[string]any{"operation": operation},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Retryable: false, Cause: cause,
	}
}

// SinkError creates a new AppError for a failure in an attached sink.
func SinkError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeSinkError, Message: "The attached sink failed to accept a batch.",
		Retryable: true, Cause: cause,
	}
}
