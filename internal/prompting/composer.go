// Package prompting maintains the active instruction set and composes it
// with learned patterns into the effective instructions for a turn.
package prompting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/learning"
	"github.com/jonathan/resume-coach/internal/prompts"
	"github.com/jonathan/resume-coach/internal/types"
)

// DefaultMaxPatterns caps how many learned patterns are injected.
const DefaultMaxPatterns = 8

// Store is the persistence the composer relies on. CreatePromptVersion with
// activate set, and ActivatePrompt, must swap the active flag atomically.
type Store interface {
	GetActivePrompt(ctx context.Context) (*types.PromptVersion, error)
	GetPromptVersion(ctx context.Context, id string) (*types.PromptVersion, error)
	ListPromptVersions(ctx context.Context) ([]types.PromptVersion, error)
	CreatePromptVersion(ctx context.Context, pv *types.PromptVersion, activate bool) error
	ActivatePrompt(ctx context.Context, id string) (*types.PromptVersion, error)
	RecordPromptRating(ctx context.Context, id string, rating int) (*types.PromptVersion, error)
	ListPatterns(ctx context.Context, activeOnly bool) ([]types.LearnedPattern, error)
}

// Instructions is the composed system text for one turn.
type Instructions struct {
	Text            string
	PromptVersionID string
	PatternKeys     []string
}

// Composer manages prompt versions and builds effective instructions.
type Composer struct {
	store       Store
	tags        *learning.TagTable
	maxPatterns int
	logger      *zap.Logger
}

// NewComposer creates a Composer. maxPatterns <= 0 uses DefaultMaxPatterns.
func NewComposer(store Store, tags *learning.TagTable, maxPatterns int, log *zap.Logger) *Composer {
	if tags == nil {
		tags = learning.DefaultTagTable
	}
	if maxPatterns <= 0 {
		maxPatterns = DefaultMaxPatterns
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{store: store, tags: tags, maxPatterns: maxPatterns, logger: log}
}

// Effective loads the active prompt and active patterns and composes them.
// Without any prompt version the embedded default instructions are used.
func (c *Composer) Effective(ctx context.Context) (*Instructions, error) {
	active, err := c.store.GetActivePrompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active prompt: %w", err)
	}
	patterns, err := c.store.ListPatterns(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}

	base := prompts.MustGet(prompts.CoachFile, prompts.KeyBaseInstructions)
	out := &Instructions{}
	if active != nil {
		base = active.Instructions
		out.PromptVersionID = active.ID
	}

	selected := c.selectPatterns(patterns)
	for _, p := range selected {
		out.PatternKeys = append(out.PatternKeys, p.Key)
	}
	out.Text = Compose(base, selected, c.tags)
	return out, nil
}

// selectPatterns keeps the highest-confidence active patterns with a known directive.
func (c *Composer) selectPatterns(patterns []types.LearnedPattern) []types.LearnedPattern {
	var usable []types.LearnedPattern
	for _, p := range patterns {
		if !p.Active {
			continue
		}
		if _, ok := c.tags.ForPattern(p); !ok {
			continue
		}
		usable = append(usable, p)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Confidence != usable[j].Confidence {
			return usable[i].Confidence > usable[j].Confidence
		}
		return usable[i].Key < usable[j].Key
	})
	if len(usable) > c.maxPatterns {
		usable = usable[:c.maxPatterns]
	}
	return usable
}

var groupTitles = map[types.PatternType]string{
	types.PatternAvoidPhrase:     "Avoid",
	types.PatternPreferredPhrase: "Prefer",
	types.PatternFormatRule:      "Format",
	types.PatternTonePreference:  "Tone",
}

// Compose appends the given patterns to the base instructions, grouped by
// type in a fixed order, one directive per line. Patterns are rendered in
// the order given within each group.
func Compose(base string, patterns []types.LearnedPattern, tags *learning.TagTable) string {
	if len(patterns) == 0 {
		return strings.TrimSpace(base)
	}
	if tags == nil {
		tags = learning.DefaultTagTable
	}

	grouped := make(map[types.PatternType][]string)
	for _, p := range patterns {
		m, ok := tags.ForPattern(p)
		if !ok {
			continue
		}
		grouped[p.Type] = append(grouped[p.Type], m.Directive)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))
	b.WriteString("\n\n")
	b.WriteString(prompts.MustGet(prompts.CoachFile, prompts.KeyLearnedHeader))
	for _, t := range types.PatternTypes {
		directives := grouped[t]
		if len(directives) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:", groupTitles[t])
		for _, d := range directives {
			fmt.Fprintf(&b, "\n- %s", d)
		}
	}
	return b.String()
}

// CreateVersion stores a new prompt version. The first version ever created
// is activated regardless of activate.
func (c *Composer) CreateVersion(ctx context.Context, req *types.CreatePromptRequest) (*types.PromptVersion, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: "invalid prompt version", Cause: err}
	}
	existing, err := c.store.ListPromptVersions(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range existing {
		if v.Version == req.Version {
			return nil, &ValidationError{Message: fmt.Sprintf("version %q already exists", req.Version)}
		}
	}

	pv := &types.PromptVersion{
		ID:           uuid.New().String(),
		Version:      req.Version,
		Instructions: req.Instructions,
		Changelog:    req.Changelog,
		CreatedAt:    time.Now().UTC(),
	}
	activate := req.Activate || len(existing) == 0
	if err := c.store.CreatePromptVersion(ctx, pv, activate); err != nil {
		return nil, err
	}
	c.logger.Info("prompt version created",
		zap.String("id", pv.ID),
		zap.String("version", pv.Version),
		zap.Bool("active", pv.Active),
	)
	return pv, nil
}

// Activate makes id the single active version.
func (c *Composer) Activate(ctx context.Context, id string) (*types.PromptVersion, error) {
	pv, err := c.store.ActivatePrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	c.logger.Info("prompt version activated", zap.String("id", pv.ID), zap.String("version", pv.Version))
	return pv, nil
}

// RecordRating folds a rating into a version's aggregates.
func (c *Composer) RecordRating(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Message: fmt.Sprintf("rating %d out of range 1..5", rating)}
	}
	_, err := c.store.RecordPromptRating(ctx, id, rating)
	return err
}

// Versions lists all prompt versions.
func (c *Composer) Versions(ctx context.Context) ([]types.PromptVersion, error) {
	return c.store.ListPromptVersions(ctx)
}
