// Package services provides the business operations the API exposes over
// projects, jobs and executions.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors mapping to 4xx responses.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrProjectNameRequired = errors.New("project name is required")
	ErrProjectIsSystem     = errors.New("system projects cannot be deleted")
	ErrNoTemplate          = errors.New("project has no template to reset to")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether the error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrProjectNameRequired) ||
		errors.Is(err, ErrNoTemplate)
}

// IsConflictError reports whether the error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrProjectIsSystem)
}
