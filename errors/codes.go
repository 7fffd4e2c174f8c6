package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Composition errors, raised while building a pipeline.
const (
	// ErrCodeIncompatibleSource indicates two pipelines bound to
	// different sources were concatenated.
	ErrCodeIncompatibleSource ErrorCode = "INCOMPATIBLE_SOURCE"
	// ErrCodeEmptyPipeline indicates an operator that needs a trailing
	// action was applied to a pipeline with none.
	ErrCodeEmptyPipeline ErrorCode = "EMPTY_PIPELINE"
	// ErrCodeInvalidProbability indicates a firing probability outside [0, 1].
	ErrCodeInvalidProbability ErrorCode = "INVALID_PROBABILITY"
	// ErrCodeNegativeRepeat indicates a negative repeat count.
	ErrCodeNegativeRepeat ErrorCode = "NEGATIVE_REPEAT"
	// ErrCodeUnknownCapability indicates an action name no registry
	// variant recognizes.
	ErrCodeUnknownCapability ErrorCode = "UNKNOWN_CAPABILITY"
)

// Dispatch errors, raised at first execution of a bad action.
const (
	// ErrCodeCapabilityNotRegistered indicates a method that exists on
	// the batch value but was never registered as an action.
	ErrCodeCapabilityNotRegistered ErrorCode = "CAPABILITY_NOT_REGISTERED"
	// ErrCodeMethodNotFound indicates a name absent from the batch's
	// whole variant chain.
	ErrCodeMethodNotFound ErrorCode = "METHOD_NOT_FOUND"
)

// General errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeSinkError indicates a failure in an attached sink.
	ErrCodeSinkError ErrorCode = "SINK_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:   true,
	ErrCodeSinkError: true,
	ErrCodeInternal:  false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
