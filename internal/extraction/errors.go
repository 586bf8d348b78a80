package extraction

import "fmt"

// TooLargeError is returned when content exceeds MaxContentBytes.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("content of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// UnsupportedTypeError is returned for MIME types the extractor cannot read.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.MimeType)
}

// Error is a failure reading otherwise supported content.
type Error struct {
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error (%s): %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction error (%s): %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
