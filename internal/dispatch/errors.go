package dispatch

import "errors"

// invocationError wraps a failure raised by the model's own computation.
type invocationError struct {
	model string
	cause error
}

func (e *invocationError) Error() string {
	return "invocation failed for " + e.model + ": " + e.cause.Error()
}
func (e *invocationError) Unwrap() error { return e.cause }

// ErrInvocation wraps cause as an invocation failure for model.
func ErrInvocation(model string, cause error) error {
	return &invocationError{model: model, cause: cause}
}

// IsInvocationError reports whether err indicates a model computation failure.
func IsInvocationError(err error) bool {
	var e *invocationError
	return errors.As(err, &e)
}

// timeoutError signals that the caller's deadline elapsed before the worker
// pool completed the call. The underlying work may still complete and
// populate the cache.
type timeoutError struct{ model string }

func (e timeoutError) Error() string { return "inference timed out for " + e.model }

// ErrTimeout returns a deadline-elapsed error for model.
func ErrTimeout(model string) error { return timeoutError{model: model} }

// IsTimeout reports whether err indicates an elapsed request deadline.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

// invalidRequestError signals a malformed request (no model selector, no
// input) for 400 mapping.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a malformed request.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}
