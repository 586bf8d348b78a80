package curriculum

import (
	"errors"
	"fmt"
)

// ErrLevelLocked is returned when a level's predecessor has not been completed.
var ErrLevelLocked = errors.New("level is locked")

// LevelNotFoundError is returned for a level number absent from the curriculum.
type LevelNotFoundError struct {
	Level int
}

func (e *LevelNotFoundError) Error() string {
	return fmt.Sprintf("level %d not found", e.Level)
}

// DefinitionError reports an invalid curriculum definition.
type DefinitionError struct {
	Message string
	Cause   error
}

func (e *DefinitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid curriculum: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid curriculum: %s", e.Message)
}

func (e *DefinitionError) Unwrap() error {
	return e.Cause
}
