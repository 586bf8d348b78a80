package types

import "time"

// PatternType classifies what a learned pattern steers.
type PatternType string

// Learned pattern types
const (
	PatternAvoidPhrase     PatternType = "avoid_phrase"
	PatternPreferredPhrase PatternType = "preferred_phrase"
	PatternFormatRule      PatternType = "format_rule"
	PatternTonePreference  PatternType = "tone_preference"
)

// PatternTypes lists the pattern types in the order they are rendered into instructions.
var PatternTypes = []PatternType{
	PatternAvoidPhrase, PatternPreferredPhrase, PatternFormatRule, PatternTonePreference,
}

// Valid reports whether t is a known pattern type.
func (t PatternType) Valid() bool {
	for _, known := range PatternTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Confidence bounds and the activation threshold for learned patterns.
const (
	MinConfidence       = 0.1
	MaxConfidence       = 0.99
	ActivationThreshold = 0.4
	MaxPatternExamples  = 10
)

// LearnedPattern is a style or content rule reinforced by user ratings.
type LearnedPattern struct {
	ID                 string      `json:"id"`
	Type               PatternType `json:"type"`
	Key                string      `json:"key"`
	Category           string      `json:"category"`
	Confidence         float64     `json:"confidence"`
	ReinforcementCount int         `json:"reinforcement_count"`
	Examples           []string    `json:"examples"`
	Active             bool        `json:"active"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
