package llm

import "fmt"

// GenerationError is an upstream language-model failure.
type GenerationError struct {
	Model   string
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation error (%s): %s: %v", e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("generation error (%s): %s", e.Model, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
