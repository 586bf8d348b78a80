package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/resume-coach/internal/db"
	authmw "github.com/jonathan/resume-coach/internal/server/middleware"
	"github.com/jonathan/resume-coach/internal/types"
)

// handleFeedback rates an assistant turn of one of the caller's documents.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	turnID := chi.URLParam(r, "id")
	var req types.FeedbackRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	req.TurnID = turnID

	if owner := authmw.OwnerID(r); owner != "" {
		turn, err := s.svc.Store.GetTurn(r.Context(), turnID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		doc, err := s.svc.Store.GetDocument(r.Context(), turn.DocumentID)
		if err != nil || !ownedBy(doc, owner) {
			s.fail(w, r, &db.NotFoundError{Collection: db.CollTurns, ID: turnID})
			return
		}
	}

	fb, err := s.svc.Feedback.SubmitFeedback(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, fb)
}

// handleListPatterns lists learned patterns; ?active=true keeps only those
// currently injected into instructions.
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	patterns, err := s.svc.Store.ListPatterns(r.Context(), activeOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if patterns == nil {
		patterns = []types.LearnedPattern{}
	}
	s.jsonResponse(w, http.StatusOK, patterns)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.Prompts.Versions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []types.PromptVersion{}
	}
	s.jsonResponse(w, http.StatusOK, versions)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req types.CreatePromptRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	pv, err := s.svc.Prompts.CreateVersion(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, pv)
}

func (s *Server) handleActivatePrompt(w http.ResponseWriter, r *http.Request) {
	pv, err := s.svc.Prompts.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, pv)
}
