package merge

import "fmt"

// ValidationError is returned when an update is malformed: unknown action,
// unknown section, or a payload that does not fit its section.
type ValidationError struct {
	Section string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	prefix := "merge validation error"
	if e.Section != "" {
		prefix = fmt.Sprintf("merge validation error in %s", e.Section)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
