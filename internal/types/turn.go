package types

import "time"

// Role identifies who authored a turn.
type Role string

// Turn roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted message of a conversation.
type Turn struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	PromptVersionID string    `json:"prompt_version_id,omitempty"`
	TokensIn        int       `json:"tokens_in,omitempty"`
	TokensOut       int       `json:"tokens_out,omitempty"`
	Updates         []Update  `json:"updates,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TurnRequest is the input side of the turn wire contract.
type TurnRequest struct {
	DocumentID  string `json:"documentId"`
	MessageText string `json:"messageText" validate:"required,max=20000"`
}

// Validate validates the TurnRequest using the validator.
func (r *TurnRequest) Validate() error {
	return validate.Struct(r)
}

// Feedback is a user's rating of one assistant turn.
type Feedback struct {
	ID         string    `json:"id"`
	TurnID     string    `json:"turn_id"`
	DocumentID string    `json:"document_id"`
	Rating     int       `json:"rating"`
	Tags       []string  `json:"tags,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackRequest is the body of a feedback submission.
type FeedbackRequest struct {
	TurnID  string   `json:"turn_id" validate:"required"`
	Rating  int      `json:"rating" validate:"required,min=1,max=5"`
	Tags    []string `json:"tags,omitempty" validate:"max=10,dive,required,max=64"`
	Comment string   `json:"comment,omitempty" validate:"max=2000"`
}

// Validate validates the FeedbackRequest using the validator.
func (r *FeedbackRequest) Validate() error {
	return validate.Struct(r)
}

// LearningJob asks the feedback learner to fold one rating into the pattern store.
type LearningJob struct {
	FeedbackID string   `json:"feedback_id"`
	TurnText   string   `json:"turn_text"`
	Tags       []string `json:"tags"`
	Rating     int      `json:"rating"`
}
