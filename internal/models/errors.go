package models

import "errors"

var (
	// ErrNotFound is returned when a course or section does not exist or does not belong to the requested course
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the student's organization is not enrolled in the course
	ErrUnauthorized = errors.New("course is not enrolled for the student's organization")
	// ErrConcurrencyConflict is returned when a write collided with a concurrent write for the same key
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrStorageFailure is returned when the store is unreachable or a write fails
	ErrStorageFailure = errors.New("storage failure")
	// ErrAlreadyExists is returned when a unique key is violated
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is returned when request parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
)

// Reason codes returned to callers of core operations
const (
	ReasonNotFound            = "not_found"
	ReasonUnauthorized        = "unauthorized"
	ReasonConcurrencyConflict = "concurrency_conflict"
	ReasonStorageFailure      = "storage_failure"
	ReasonAlreadyExists       = "already_exists"
	ReasonInvalidInput        = "invalid_input"
	ReasonInternal            = "internal"
)

// ReasonCode maps an error to a reason code
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrConcurrencyConflict):
		return ReasonConcurrencyConflict
	case errors.Is(err, ErrStorageFailure):
		return ReasonStorageFailure
	case errors.Is(err, ErrAlreadyExists):
		return ReasonAlreadyExists
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	default:
		return ReasonInternal
	}
}
