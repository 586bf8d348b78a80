package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/fetch"
	"github.com/jonathan/resume-coach/internal/types"
)

// importResponse reports what an import read and the resulting document.
type importResponse struct {
	Document         *types.DocumentRecord `json:"document"`
	Changed          bool                  `json:"changed"`
	DetectedLanguage string                `json:"detected_language,omitempty"`
	ContentHash      string                `json:"content_hash,omitempty"`
	Source           string                `json:"source"`
}

type importURLRequest struct {
	URL string `json:"url"`
}

type importObjectRequest struct {
	Key string `json:"key"`
}

// handleImportUpload reads a résumé from the raw request body, typed by its
// Content-Type. The content is discarded once extracted.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, extraction.MaxContentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, &extraction.TooLargeError{Size: r.ContentLength, Limit: extraction.MaxContentBytes})
			return
		}
		s.fail(w, r, &ErrValidation{Field: "body", Message: "failed to read upload"})
		return
	}
	if len(content) == 0 {
		s.fail(w, r, &ErrValidation{Field: "body", Message: "upload is empty"})
		return
	}
	s.importContent(w, r, rec, content, r.Header.Get("Content-Type"), "upload")
}

// handleImportURL imports a public profile page.
func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	var req importURLRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.fail(w, r, &ErrValidation{Field: "url", Message: "is required"})
		return
	}

	result, err := fetch.Profile(r.Context(), req.URL, s.svc.Fetch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("fetched profile",
		zap.String("url", req.URL),
		zap.String("platform", string(fetch.DetectPlatform(req.URL))),
		zap.Bool("rendered", result.Rendered),
		zap.Int("text_chars", len(result.Text)))
	s.importContent(w, r, rec, []byte(result.Text), extraction.MimeText, req.URL)
}

// handleImportObject imports a file previously uploaded to the object store.
func (s *Server) handleImportObject(w http.ResponseWriter, r *http.Request) {
	if s.svc.Objects == nil {
		s.errorResponse(w, http.StatusNotImplemented, "object store is not configured")
		return
	}
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	var req importObjectRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		s.fail(w, r, &ErrValidation{Field: "key", Message: "is required"})
		return
	}

	obj, err := s.svc.Objects.Get(r.Context(), req.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.importContent(w, r, rec, obj.Content, obj.ContentType, "object:"+req.Key)
}

func (s *Server) importContent(w http.ResponseWriter, r *http.Request, rec *types.DocumentRecord, content []byte, mimeType, source string) {
	extracted, err := s.svc.Extractor.Extract(r.Context(), content, mimeType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.svc.Conversation.Import(r.Context(), rec.ID, extracted.Guess, source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, importResponse{
		Document:         updated,
		Changed:          updated.Revision != rec.Revision,
		DetectedLanguage: extracted.DetectedLanguage,
		ContentHash:      extracted.ContentHash,
		Source:           source,
	})
}
