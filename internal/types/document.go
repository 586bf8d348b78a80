// Package types provides type definitions for structured data used throughout the resume-coach system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// Document is the structured résumé assembled over a conversation.
type Document struct {
	Header         Header            `json:"header"`
	Summary        string            `json:"summary,omitempty"`
	Experience     []ExperienceEntry `json:"experience"`
	Education      []EducationEntry  `json:"education"`
	Skills         Skills            `json:"skills"`
	Certifications []Certification   `json:"certifications"`
	Keywords       []string          `json:"keywords"`
	Constraints    Constraints       `json:"constraints"`
}

// Header holds contact and identity fields.
type Header struct {
	FullName string   `json:"full_name,omitempty"`
	Headline string   `json:"headline,omitempty"`
	Location string   `json:"location,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// ExperienceEntry is one position held.
type ExperienceEntry struct {
	ID        string   `json:"id,omitempty"`
	Role      string   `json:"role,omitempty"`
	Company   string   `json:"company,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Location  string   `json:"location,omitempty"`
	Bullets   []string `json:"bullets,omitempty"`
}

// EducationEntry is one degree or program.
type EducationEntry struct {
	ID          string `json:"id,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Institution string `json:"institution,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// Certification is a credential with its issuer.
type Certification struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
}

// Skills splits hard and soft skills.
type Skills struct {
	Hard []string `json:"hard"`
	Soft []string `json:"soft"`
}

// Count returns the total number of listed skills.
func (s Skills) Count() int {
	return len(s.Hard) + len(s.Soft)
}

// Constraints captures layout and targeting preferences.
// OnePage is a pointer so an update can distinguish "not mentioned" from false.
type Constraints struct {
	OnePage    *bool  `json:"one_page,omitempty"`
	Language   string `json:"language,omitempty"`
	TargetRole string `json:"target_role,omitempty"`
}

// PartialDocument is a best-effort guess at document content, as produced by
// heuristic extraction. Every field is optional.
type PartialDocument struct {
	Header         Header            `json:"header"`
	Summary        string            `json:"summary,omitempty"`
	Experience     []ExperienceEntry `json:"experience,omitempty"`
	Education      []EducationEntry  `json:"education,omitempty"`
	Skills         Skills            `json:"skills"`
	Certifications []Certification   `json:"certifications,omitempty"`
	Keywords       []string          `json:"keywords,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (p PartialDocument) IsEmpty() bool {
	h := p.Header
	return h.FullName == "" && h.Headline == "" && h.Location == "" && h.Email == "" &&
		h.Phone == "" && len(h.Links) == 0 && strings.TrimSpace(p.Summary) == "" &&
		len(p.Experience) == 0 && len(p.Education) == 0 && p.Skills.Count() == 0 &&
		len(p.Certifications) == 0 && len(p.Keywords) == 0
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	// StatusDraft means the document is below the readiness threshold.
	StatusDraft DocumentStatus = "DRAFT"
	// StatusReady means the document scored at or above the readiness threshold.
	StatusReady DocumentStatus = "READY"
	// StatusClosed means the document is locked against further edits.
	StatusClosed DocumentStatus = "CLOSED"
)

// MaxDocumentHistory is the number of previous document versions retained.
const MaxDocumentHistory = 5

// DocumentRecord is the persisted envelope around a Document.
type DocumentRecord struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Document  Document       `json:"document"`
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
	Status    DocumentStatus `json:"status"`
	Revision  int            `json:"revision"`
	History   []Document     `json:"history,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PushHistory records prev as the most recent prior version, evicting the
// oldest entries past MaxDocumentHistory.
func (r *DocumentRecord) PushHistory(prev Document) {
	r.History = append(r.History, prev)
	if over := len(r.History) - MaxDocumentHistory; over > 0 {
		r.History = append([]Document(nil), r.History[over:]...)
	}
}

// CreateDocumentRequest is the body of a document creation call.
type CreateDocumentRequest struct {
	Title      string `json:"title" validate:"max=200"`
	TargetRole string `json:"target_role,omitempty" validate:"max=200"`
	Language   string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// Validate validates the CreateDocumentRequest using the validator.
func (r *CreateDocumentRequest) Validate() error {
	return validate.Struct(r)
}
