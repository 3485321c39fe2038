package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that
	// is not in queued status (another worker holds it or it is terminal)
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrJobNotProcessing is returned when a retry or terminal transition
	// finds the job outside processing status
	ErrJobNotProcessing = errors.New("job is not in processing status")

	// ErrMaxAttemptsExceeded is returned when a job has used up its attempts
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
)

// ErrMissingFields is the message returned when required submission fields
// are absent or empty.
const ErrMissingFields = "missing required fields: tokenIn, tokenOut, amountIn"

// ValidationError rejects a malformed submission before any queue
// interaction. It is the only error surfaced synchronously to the submitter.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a validation error with the given reason.
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// RetryableError wraps transient errors that should trigger a requeue of the
// queue delivery (not an execution retry).
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
