package types

import "time"

// ResponseShape is what a curriculum scenario expects the assistant to produce.
type ResponseShape string

// Expected response shapes
const (
	ShapeAny            ResponseShape = ""
	ShapeText           ResponseShape = "text"
	ShapeDocumentUpdate ResponseShape = "document_update"
)

// TrainingLevel is one step of the evaluation curriculum.
type TrainingLevel struct {
	Number         int        `json:"number" validate:"required,min=1"`
	Name           string     `json:"name" validate:"required"`
	Scenarios      []Scenario `json:"scenarios" validate:"required,min=1,dive"`
	RequiredScore  float64    `json:"required_score" validate:"min=0,max=100"`
	SkillsUnlocked []string   `json:"skills_unlocked"`
}

// Scenario is a single scripted user message and what a good reply looks like.
type Scenario struct {
	ID                string              `json:"id" validate:"required"`
	UserMessage       string              `json:"user_message" validate:"required"`
	ExpectedBehaviors []string            `json:"expected_behaviors"`
	FailCriteria      []string            `json:"fail_criteria"`
	Tags              []string            `json:"tags"`
	Difficulty        int                 `json:"difficulty" validate:"min=0,max=5"`
	Constraints       ScenarioConstraints `json:"constraints"`
	MustContain       []string            `json:"must_contain,omitempty"`
	MustNotContain    []string            `json:"must_not_contain,omitempty"`
}

// ScenarioConstraints are the mechanically checkable parts of a scenario.
type ScenarioConstraints struct {
	MaxLatencyMs     int64         `json:"max_latency_ms,omitempty" validate:"min=0"`
	MaxResponseChars int           `json:"max_response_chars,omitempty" validate:"min=0"`
	ExpectShape      ResponseShape `json:"expect_shape,omitempty" validate:"omitempty,oneof=text document_update"`
}

// TrainingProgress is one entry in the append-only progress ledger.
// The most recent entry is the current progress.
type TrainingProgress struct {
	ID              string    `json:"id"`
	CurrentLevel    int       `json:"current_level"`
	CompletedLevels []int     `json:"completed_levels"`
	SkillsLearned   []string  `json:"skills_learned"`
	CumulativeScore float64   `json:"cumulative_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasCompleted reports whether level is in the completed set.
func (p TrainingProgress) HasCompleted(level int) bool {
	for _, l := range p.CompletedLevels {
		if l == level {
			return true
		}
	}
	return false
}

// TestRecord is the persisted outcome of one graded scenario.
type TestRecord struct {
	ID            string    `json:"id"`
	Level         int       `json:"level"`
	ScenarioID    string    `json:"scenario_id"`
	Passed        bool      `json:"passed"`
	Score         float64   `json:"score"`
	LatencyMs     int64     `json:"latency_ms"`
	ResponseChars int       `json:"response_chars"`
	Reasoning     string    `json:"reasoning,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// LevelResult summarizes one curriculum level run.
type LevelResult struct {
	Level     int              `json:"level"`
	Aggregate float64          `json:"aggregate"`
	Passed    bool             `json:"passed"`
	Records   []TestRecord     `json:"records"`
	Progress  TrainingProgress `json:"progress"`
}
