package conversation

import "fmt"

// ClosedDocumentError is returned when a turn or import targets a closed document.
type ClosedDocumentError struct {
	DocumentID string
}

func (e *ClosedDocumentError) Error() string {
	return fmt.Sprintf("document %q is closed", e.DocumentID)
}

// ExtractionFailure describes why a reply's update block could not be used.
// It is recovered inside the turn and only logged.
type ExtractionFailure struct {
	Stage   string
	Message string
	Cause   error
}

func (e *ExtractionFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failure (%s): %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failure (%s): %s", e.Stage, e.Message)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Cause
}

// InputError is returned for an unusable turn request.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid turn input: %s", e.Message)
}
