package learning

import "fmt"

// ValidationError represents rejected feedback input.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feedback validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("feedback validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
