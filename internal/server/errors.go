// Package server exposes the coach over HTTP: document management, turns
// streamed as server-sent events or over a WebSocket, feedback, prompt
// versions and curriculum runs.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/curriculum"
	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/fetch"
	"github.com/jonathan/resume-coach/internal/learning"
	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/merge"
	"github.com/jonathan/resume-coach/internal/prompting"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrBusy is returned when a singleton operation is already running.
var ErrBusy = errors.New("operation already in progress")

// HTTPStatus returns the HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		validation   *ErrValidation
		notFound     *db.NotFoundError
		conflict     *db.ConflictError
		closed       *conversation.ClosedDocumentError
		input        *conversation.InputError
		feedback     *learning.ValidationError
		prompt       *prompting.ValidationError
		update       *merge.ValidationError
		tooLarge     *extraction.TooLargeError
		unsupported  *extraction.UnsupportedTypeError
		extractErr   *extraction.Error
		fetchErr     *fetch.Error
		generation   *llm.GenerationError
		levelMissing *curriculum.LevelNotFoundError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &input), errors.As(err, &feedback),
		errors.As(err, &prompt), errors.As(err, &update):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &levelMissing):
		return http.StatusNotFound
	case errors.As(err, &closed), errors.As(err, &conflict), errors.Is(err, curriculum.ErrLevelLocked), errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr), errors.As(err, &generation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError is the message returned to clients. Internal failures are not
// described beyond their status.
func publicError(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
