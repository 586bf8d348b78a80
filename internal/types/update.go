package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Action is the operation an Update performs.
type Action string

// Supported update actions
const (
	ActionUpdate Action = "update"
	ActionAdd    Action = "add"
	ActionNone   Action = "none"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionUpdate, ActionAdd, ActionNone:
		return true
	}
	return false
}

// Section names a top-level part of a Document.
type Section string

// Document sections addressable by an Update
const (
	SectionHeader         Section = "header"
	SectionSummary        Section = "summary"
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionCertifications Section = "certifications"
	SectionKeywords       Section = "keywords"
	SectionConstraints    Section = "constraints"
)

// Sections lists every addressable section in document order.
var Sections = []Section{
	SectionHeader, SectionSummary, SectionExperience, SectionEducation,
	SectionSkills, SectionCertifications, SectionKeywords, SectionConstraints,
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// Update is a partial change to one section of a Document.
type Update struct {
	Action     Action          `json:"action"`
	Section    Section         `json:"section,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ScoreDelta *int            `json:"score_delta,omitempty"`
	Feedback   string          `json:"feedback,omitempty"`
}

// NewUpdate builds an Update whose payload is the JSON encoding of v.
func NewUpdate(action Action, section Section, v any) (Update, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Update{}, fmt.Errorf("failed to encode %s payload: %w", section, err)
	}
	return Update{Action: action, Section: section, Payload: raw}, nil
}

// Updates converts a PartialDocument into one Update per populated section.
func (p PartialDocument) Updates() []Update {
	var out []Update
	add := func(section Section, v any) {
		if u, err := NewUpdate(ActionUpdate, section, v); err == nil {
			out = append(out, u)
		}
	}

	h := p.Header
	if h.FullName != "" || h.Headline != "" || h.Location != "" || h.Email != "" || h.Phone != "" || len(h.Links) > 0 {
		add(SectionHeader, h)
	}
	if p.Summary != "" {
		add(SectionSummary, p.Summary)
	}
	if len(p.Experience) > 0 {
		add(SectionExperience, p.Experience)
	}
	if len(p.Education) > 0 {
		add(SectionEducation, p.Education)
	}
	if p.Skills.Count() > 0 {
		add(SectionSkills, p.Skills)
	}
	if len(p.Certifications) > 0 {
		add(SectionCertifications, p.Certifications)
	}
	if len(p.Keywords) > 0 {
		add(SectionKeywords, p.Keywords)
	}
	return out
}
