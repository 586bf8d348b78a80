package types

import "time"

// PromptVersion is one revision of the base conversation instructions.
type PromptVersion struct {
	ID           string      `json:"id"`
	Version      string      `json:"version"`
	Instructions string      `json:"instructions"`
	Active       bool        `json:"active"`
	Changelog    string      `json:"changelog,omitempty"`
	Ratings      RatingStats `json:"ratings"`
	CreatedAt    time.Time   `json:"created_at"`
	ActivatedAt  *time.Time  `json:"activated_at,omitempty"`
}

// RatingStats aggregates the ratings received by turns generated with a prompt version.
type RatingStats struct {
	Total    int     `json:"total"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Average  float64 `json:"average"`
}

// Add folds a single 1..5 rating into the running aggregate.
func (s RatingStats) Add(rating int) RatingStats {
	s.Average = (s.Average*float64(s.Total) + float64(rating)) / float64(s.Total+1)
	s.Total++
	if rating >= 4 {
		s.Positive++
	}
	if rating <= 2 {
		s.Negative++
	}
	return s
}

// CreatePromptRequest is the body of a prompt version creation call.
type CreatePromptRequest struct {
	Version      string `json:"version" validate:"required,max=64"`
	Instructions string `json:"instructions" validate:"required"`
	Changelog    string `json:"changelog,omitempty"`
	Activate     bool   `json:"activate"`
}

// Validate validates the CreatePromptRequest using the validator.
func (r *CreatePromptRequest) Validate() error {
	return validate.Struct(r)
}
