// Package persistence provides standardized error types for storage
// operations.
package persistence

import "errors"

var (
	// ErrProjectNotFound indicates no project exists for the identifier.
	ErrProjectNotFound = errors.New("project not found")

	// ErrJobNotFound indicates no job exists for the identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrExecutionNotFound indicates no execution instance exists for the
	// identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrJobAlreadyClaimed indicates another worker won the claim race; the
	// caller must move on to the next queued job.
	ErrJobAlreadyClaimed = errors.New("job already claimed")

	// ErrInvalidJobTransition indicates an attempted backward or sideways
	// job status change.
	ErrInvalidJobTransition = errors.New("invalid job status transition")
)

func IsProjectNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}

func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

func IsJobAlreadyClaimed(err error) bool {
	return errors.Is(err, ErrJobAlreadyClaimed)
}

func IsInvalidJobTransition(err error) bool {
	return errors.Is(err, ErrInvalidJobTransition)
}
