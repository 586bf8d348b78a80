package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/prompts"
	"github.com/jonathan/resume-coach/internal/schemas"
	"github.com/jonathan/resume-coach/internal/types"
)

// Response is what the coach produced for one scenario.
type Response struct {
	ScenarioID      string
	Text            string
	Latency         time.Duration
	DocumentUpdated bool
}

// Chars is the reply length in runes.
func (r Response) Chars() int {
	return len([]rune(r.Text))
}

// Grade is the verdict on one response. Score is in [0, 100].
type Grade struct {
	Passed    bool
	Score     float64
	Reasoning string
}

// Grader judges a response against its scenario.
type Grader interface {
	Grade(ctx context.Context, resp Response, scenario types.Scenario) (Grade, error)
}

// constraintViolations lists the declared constraints resp breaks.
func constraintViolations(resp Response, c types.ScenarioConstraints) []string {
	var out []string
	if c.MaxLatencyMs > 0 && resp.Latency.Milliseconds() > c.MaxLatencyMs {
		out = append(out, fmt.Sprintf("latency %dms exceeds %dms", resp.Latency.Milliseconds(), c.MaxLatencyMs))
	}
	if c.MaxResponseChars > 0 && resp.Chars() > c.MaxResponseChars {
		out = append(out, fmt.Sprintf("reply has %d characters, limit %d", resp.Chars(), c.MaxResponseChars))
	}
	switch c.ExpectShape {
	case types.ShapeDocumentUpdate:
		if !resp.DocumentUpdated {
			out = append(out, "expected a document update")
		}
	case types.ShapeText:
		if resp.DocumentUpdated {
			out = append(out, "expected a text-only reply")
		}
	}
	return out
}

// RuleGrader checks the declared constraints and the must/must-not phrase
// lists. The score is the share of checks that hold.
type RuleGrader struct{}

func (RuleGrader) Grade(_ context.Context, resp Response, s types.Scenario) (Grade, error) {
	total := 0
	var failures []string

	c := s.Constraints
	for _, enabled := range []bool{c.MaxLatencyMs > 0, c.MaxResponseChars > 0, c.ExpectShape != types.ShapeAny} {
		if enabled {
			total++
		}
	}
	failures = append(failures, constraintViolations(resp, c)...)

	lower := strings.ToLower(resp.Text)
	for _, phrase := range s.MustContain {
		total++
		if !strings.Contains(lower, strings.ToLower(phrase)) {
			failures = append(failures, fmt.Sprintf("missing %q", phrase))
		}
	}
	for _, phrase := range s.MustNotContain {
		total++
		if strings.Contains(lower, strings.ToLower(phrase)) {
			failures = append(failures, fmt.Sprintf("contains %q", phrase))
		}
	}

	if total == 0 {
		return Grade{Passed: true, Score: 100, Reasoning: "no mechanical checks declared"}, nil
	}
	score := 100 * float64(total-len(failures)) / float64(total)
	if len(failures) == 0 {
		return Grade{Passed: true, Score: score, Reasoning: fmt.Sprintf("all %d checks passed", total)}, nil
	}
	return Grade{Passed: false, Score: score, Reasoning: strings.Join(failures, "; ")}, nil
}

// JudgeGrader asks a language model to grade the reply against the
// scenario's expected behaviors and fail criteria.
type JudgeGrader struct {
	Client llm.Client
	Tier   llm.ModelTier
}

type verdict struct {
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

func (g JudgeGrader) Grade(ctx context.Context, resp Response, s types.Scenario) (Grade, error) {
	prompt, err := prompts.Render(prompts.CoachFile, prompts.KeyJudgeScenario, map[string]string{
		"UserMessage":  s.UserMessage,
		"Response":     resp.Text,
		"Expected":     bulletList(s.ExpectedBehaviors),
		"FailCriteria": bulletList(s.FailCriteria),
	})
	if err != nil {
		return Grade{}, err
	}

	tier := g.Tier
	if tier == "" {
		tier = llm.TierLite
	}
	raw, err := g.Client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return Grade{}, fmt.Errorf("judge generation failed: %w", err)
	}
	raw = llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Verdict, []byte(raw)); err != nil {
		return Grade{}, fmt.Errorf("judge verdict invalid: %w", err)
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Grade{}, fmt.Errorf("failed to parse judge verdict: %w (content: %s)", err, raw)
	}
	return Grade{Passed: v.Passed, Score: v.Score, Reasoning: v.Reasoning}, nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// ConstraintGate fails any response that breaks a declared constraint and
// hands the rest to Next.
type ConstraintGate struct {
	Next Grader
}

func (g ConstraintGate) Grade(ctx context.Context, resp Response, s types.Scenario) (Grade, error) {
	if violations := constraintViolations(resp, s.Constraints); len(violations) > 0 {
		return Grade{Passed: false, Score: 0, Reasoning: strings.Join(violations, "; ")}, nil
	}
	if g.Next == nil {
		return Grade{Passed: true, Score: 100, Reasoning: "constraints hold"}, nil
	}
	return g.Next.Grade(ctx, resp, s)
}
