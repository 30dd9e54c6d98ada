package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrConflict           = errors.New("session was modified concurrently")
	ErrSessionBusy        = errors.New("session is busy with another turn")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ValidationError rejects a caller input before any session is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// PersistenceError wraps a session store failure. A turn that fails with it
// has not been committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ModelInvocationError wraps a language model failure or timeout. No
// assistant message is appended when a turn fails with it.
type ModelInvocationError struct {
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}
func (e *ModelInvocationError) Unwrap() error { return e.Err }
