package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListLevels(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.svc.Training.Levels())
}

func (s *Server) handleTrainingProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.Training.Progress(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleRunLevel runs one curriculum level synchronously. Only one run may
// be in progress at a time.
func (s *Server) handleRunLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 1 {
		s.fail(w, r, &ErrValidation{Field: "level", Message: "must be a positive integer"})
		return
	}
	if !s.trainingMu.TryLock() {
		s.fail(w, r, ErrBusy)
		return
	}
	defer s.trainingMu.Unlock()

	result, err := s.svc.Training.RunLevel(r.Context(), level)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}
