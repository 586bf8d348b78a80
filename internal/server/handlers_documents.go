package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/db"
	authmw "github.com/jonathan/resume-coach/internal/server/middleware"
	"github.com/jonathan/resume-coach/internal/types"
)

const (
	defaultTurnPage = 50
	maxTurnPage     = 500
)

// document loads the {id} document and checks it belongs to the caller.
// Documents of other owners are reported as missing.
func (s *Server) document(w http.ResponseWriter, r *http.Request) (*types.DocumentRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.svc.Store.GetDocument(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if !ownedBy(rec, authmw.OwnerID(r)) {
		s.fail(w, r, &db.NotFoundError{Collection: db.CollDocuments, ID: id})
		return nil, false
	}
	return rec, true
}

func ownedBy(rec *types.DocumentRecord, owner string) bool {
	return owner == "" || rec.OwnerID == owner
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Store.ListDocuments(r.Context(), authmw.OwnerID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []types.DocumentRecord{}
	}
	s.jsonResponse(w, http.StatusOK, docs)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req types.CreateDocumentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: err.Error()})
		return
	}

	rec := conversation.NewRecord(authmw.OwnerID(r), req.Title,
		types.Constraints{Language: req.Language, TargetRole: req.TargetRole})
	if err := s.svc.Store.CreateDocument(r.Context(), rec); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("document created", zap.String("document_id", rec.ID), zap.String("owner", rec.OwnerID))
	s.jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleCloseDocument(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	if rec.Status == types.StatusClosed {
		s.jsonResponse(w, http.StatusOK, rec)
		return
	}
	closed, err := s.svc.Store.CloseDocument(r.Context(), rec.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("document closed", zap.String("document_id", rec.ID), zap.Int("score", closed.Score))
	s.jsonResponse(w, http.StatusOK, closed)
}

// handleListTurns returns the latest turns in chronological order.
func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	limit := defaultTurnPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTurnPage {
			s.fail(w, r, &ErrValidation{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxTurnPage)})
			return
		}
		limit = n
	}
	turns, err := s.svc.Store.ListTurns(r.Context(), rec.ID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if turns == nil {
		turns = []types.Turn{}
	}
	s.jsonResponse(w, http.StatusOK, turns)
}
