package prompting

import "fmt"

// ValidationError represents a rejected prompt operation.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prompt validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("prompt validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
