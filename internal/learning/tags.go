// Package learning turns rated feedback into reinforced style and content patterns.
package learning

import (
	"fmt"

	"github.com/jonathan/resume-coach/internal/types"
)

// Tag is a feedback label a user can attach to a rating.
type Tag string

// Known feedback tags
const (
	TagInventedData       Tag = "invented_data"
	TagGenericPhrasing    Tag = "generic_phrasing"
	TagStrongVerbs        Tag = "strong_verbs"
	TagQuantifiedImpact   Tag = "quantified_impact"
	TagConciseBullets     Tag = "concise_bullets"
	TagTooLong            Tag = "too_long"
	TagOneQuestionAtATime Tag = "one_question_at_a_time"
	TagFriendlyTone       Tag = "friendly_tone"
	TagTooFormal          Tag = "too_formal"
	TagPushy              Tag = "pushy"
)

// Mapping binds a tag to the pattern it reinforces and the directive rendered
// for that pattern.
type Mapping struct {
	Tag       Tag
	Type      types.PatternType
	Category  string
	Directive string
}

// TagTable is a closed, validated mapping from tags to patterns.
type TagTable struct {
	byTag map[Tag]Mapping
	order []Tag
}

// NewTagTable validates mappings and builds a table. Every mapping needs a
// known pattern type, a category and a directive; tags must be unique.
func NewTagTable(mappings []Mapping) (*TagTable, error) {
	t := &TagTable{byTag: make(map[Tag]Mapping, len(mappings))}
	for i, m := range mappings {
		switch {
		case m.Tag == "":
			return nil, fmt.Errorf("mapping %d: empty tag", i)
		case !m.Type.Valid():
			return nil, fmt.Errorf("mapping %q: unknown pattern type %q", m.Tag, m.Type)
		case m.Category == "":
			return nil, fmt.Errorf("mapping %q: empty category", m.Tag)
		case m.Directive == "":
			return nil, fmt.Errorf("mapping %q: empty directive", m.Tag)
		}
		if _, dup := t.byTag[m.Tag]; dup {
			return nil, fmt.Errorf("mapping %q: duplicate tag", m.Tag)
		}
		t.byTag[m.Tag] = m
		t.order = append(t.order, m.Tag)
	}
	return t, nil
}

// MustTagTable is NewTagTable that panics on invalid input.
func MustTagTable(mappings []Mapping) *TagTable {
	t, err := NewTagTable(mappings)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the mapping for a raw tag string.
func (t *TagTable) Lookup(tag string) (Mapping, bool) {
	m, ok := t.byTag[Tag(tag)]
	return m, ok
}

// ForPattern finds the mapping that produced a pattern.
func (t *TagTable) ForPattern(p types.LearnedPattern) (Mapping, bool) {
	m, ok := t.byTag[Tag(p.Key)]
	if !ok || m.Type != p.Type {
		return Mapping{}, false
	}
	return m, true
}

// Tags returns the known tags in declaration order.
func (t *TagTable) Tags() []Tag {
	return append([]Tag(nil), t.order...)
}

// DefaultTagTable is the built-in tag mapping.
var DefaultTagTable = MustTagTable([]Mapping{
	{TagInventedData, types.PatternAvoidPhrase, "accuracy", "Never invent employers, dates, numbers or achievements the user has not stated."},
	{TagGenericPhrasing, types.PatternAvoidPhrase, "wording", "Avoid generic filler such as \"results-driven\" or \"team player\"."},
	{TagStrongVerbs, types.PatternPreferredPhrase, "wording", "Start bullets with strong action verbs."},
	{TagQuantifiedImpact, types.PatternPreferredPhrase, "impact", "Ask for and include concrete numbers that show impact."},
	{TagConciseBullets, types.PatternFormatRule, "format", "Keep each bullet to one line."},
	{TagTooLong, types.PatternFormatRule, "length", "Keep replies short."},
	{TagOneQuestionAtATime, types.PatternFormatRule, "conversation", "Ask one question at a time."},
	{TagFriendlyTone, types.PatternTonePreference, "tone", "Keep a warm, encouraging tone."},
	{TagTooFormal, types.PatternTonePreference, "tone", "Use plain, conversational language."},
	{TagPushy, types.PatternTonePreference, "tone", "Do not pressure the user; let them skip questions."},
})
