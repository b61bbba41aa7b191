package loader

import "errors"

// loadError wraps an artifact fetch/verify/open failure for a model name.
type loadError struct {
	name  string
	cause error
}

func (e *loadError) Error() string { return "load failed for " + e.name + ": " + e.cause.Error() }
func (e *loadError) Unwrap() error { return e.cause }

// ErrLoad wraps cause as a load failure for name.
func ErrLoad(name string, cause error) error { return &loadError{name: name, cause: cause} }

// IsLoadError reports whether err indicates a model load failure.
func IsLoadError(err error) bool {
	var e *loadError
	return errors.As(err, &e)
}
