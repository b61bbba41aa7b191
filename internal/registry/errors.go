package registry

import (
	"errors"

	"inferd/pkg/types"
)

// notFoundError indicates a registry lookup miss.
type notFoundError struct{ name string }

func (e notFoundError) Error() string { return "model not found: " + e.name }

// ErrNotFound returns an error for a missing model name.
func ErrNotFound(name string) error { return notFoundError{name: name} }

// IsNotFound reports whether err indicates a missing model name.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// alreadyRegisteredError indicates a duplicate registration attempt.
type alreadyRegisteredError struct{ name string }

func (e alreadyRegisteredError) Error() string { return "model already registered: " + e.name }

// ErrAlreadyRegistered returns an error for a duplicate model name.
func ErrAlreadyRegistered(name string) error { return alreadyRegisteredError{name: name} }

// IsAlreadyRegistered reports whether err indicates a duplicate registration.
func IsAlreadyRegistered(err error) bool {
	var e alreadyRegisteredError
	return errors.As(err, &e)
}

// noCandidatesError indicates policy selection found no ready model.
type noCandidatesError struct{ modelType types.ModelType }

func (e noCandidatesError) Error() string {
	return "no ready candidates for type: " + string(e.modelType)
}

// ErrNoCandidates returns an error for an empty selection result.
func ErrNoCandidates(t types.ModelType) error { return noCandidatesError{modelType: t} }

// IsNoCandidates reports whether err indicates an empty selection result.
func IsNoCandidates(err error) bool {
	var e noCandidatesError
	return errors.As(err, &e)
}
