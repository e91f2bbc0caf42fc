package pipes

import "fmt"

// ValidationError surfaces to the API caller as a 4xx-equivalent: a pipe name,
// source, or target that does not satisfy the control plane's constraints.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError surfaces to the API caller: duplicate create, or an
// idempotent start/stop that does not change the desired state.
type ConflictError struct {
	ResourceID   string
	ResourceType string
	Message      string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflictError(resourceType, resourceID, format string, args ...interface{}) error {
	return &ConflictError{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Message:      fmt.Sprintf(format, args...),
	}
}

// NotFoundError surfaces to the API caller when a named pipe does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// CustomerInvocationError is a target-side error caused by user
// misconfiguration (4xx-class, auth failure, unsupported operation). It is
// non-retryable: the processor lets it bubble up unchanged so the poller can
// drop the batch instead of retrying it forever.
type CustomerInvocationError struct {
	Message string
}

func (e *CustomerInvocationError) Error() string { return e.Message }

func NewCustomerInvocationError(format string, args ...interface{}) error {
	return &CustomerInvocationError{Message: fmt.Sprintf(format, args...)}
}

// PipeInternalError wraps any transient failure surfaced while processing a
// batch. It is retryable: the worker backs off and the next poll retries.
type PipeInternalError struct {
	Message string
	Cause   error
}

func (e *PipeInternalError) Error() string { return e.Message }

func (e *PipeInternalError) Unwrap() error { return e.Cause }

func NewPipeInternalError(cause error) error {
	return &PipeInternalError{Message: cause.Error(), Cause: cause}
}

// ErrEmptyPoll signals a poll that returned no records. The worker treats it
// as "nothing to do" rather than a failure: no backoff is applied.
type ErrEmptyPoll struct{}

func (e *ErrEmptyPoll) Error() string { return "poll returned no records" }

// EmptyPollResults is the sentinel value pollers return for an empty poll.
var EmptyPollResults = &ErrEmptyPoll{}
