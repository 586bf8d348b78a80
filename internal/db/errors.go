package db

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a record does not exist.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

// PersistenceError wraps a storage failure that aborted an operation.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("persistence error: %s", e.Op)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ConflictError is returned when a document changed between read and write.
type ConflictError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %q revision conflict: expected %d, found %d", e.ID, e.Expected, e.Actual)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// persistErr wraps err in a PersistenceError unless it already carries a
// more specific storage error.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf *NotFoundError
		pe *PersistenceError
		ce *ConflictError
	)
	if errors.As(err, &nf) || errors.As(err, &pe) || errors.As(err, &ce) {
		return err
	}
	return &PersistenceError{Op: op, Cause: err}
}
