package learning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/logger"
	"github.com/jonathan/resume-coach/internal/types"
)

// Reinforcement steps and initial confidences.
const (
	PositiveStep         = 0.08
	NegativeStep         = 0.06
	InitialPositive      = 0.65
	InitialNegative      = 0.45
	PositiveRatingCutoff = 4
	ExcerptLength        = 160
)

// PatternStore is the persistence the learner needs. MutatePattern runs fn
// on the pattern identified by (type, key) as one read-modify-write unit;
// found is false when no such pattern exists and fn should initialize p.
type PatternStore interface {
	MutatePattern(ctx context.Context, t types.PatternType, key string, fn func(p *types.LearnedPattern, found bool) error) (*types.LearnedPattern, error)
}

// Learner applies the online reinforcement rule.
type Learner struct {
	store  PatternStore
	tags   *TagTable
	logger *zap.Logger
	now    func() time.Time
}

// NewLearner creates a Learner. A nil table uses DefaultTagTable.
func NewLearner(store PatternStore, tags *TagTable, log *zap.Logger) *Learner {
	if tags == nil {
		tags = DefaultTagTable
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Learner{store: store, tags: tags, logger: log, now: time.Now}
}

// Learn folds one rating into every pattern its known tags map to and
// returns the patterns touched. Unknown tags are skipped.
func (l *Learner) Learn(ctx context.Context, turnText string, tags []string, rating int) ([]types.LearnedPattern, error) {
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{Message: fmt.Sprintf("rating %d out of range 1..5", rating)}
	}
	excerpt := logger.TruncateForLog(turnText, ExcerptLength)

	var touched []types.LearnedPattern
	seen := make(map[Tag]bool, len(tags))
	for _, raw := range tags {
		m, ok := l.tags.Lookup(raw)
		if !ok {
			l.logger.Debug("ignoring unknown feedback tag", zap.String("tag", raw))
			continue
		}
		if seen[m.Tag] {
			continue
		}
		seen[m.Tag] = true

		now := l.now()
		p, err := l.store.MutatePattern(ctx, m.Type, string(m.Tag), func(p *types.LearnedPattern, found bool) error {
			if found {
				Reinforce(p, rating, excerpt, now)
				return nil
			}
			*p = NewPattern(m, rating, excerpt, now)
			return nil
		})
		if err != nil {
			return touched, fmt.Errorf("failed to update pattern %s: %w", m.Tag, err)
		}
		l.logger.Info("pattern reinforced",
			zap.String("tag", string(m.Tag)),
			zap.Int("rating", rating),
			zap.Float64("confidence", p.Confidence),
			zap.Int("reinforcement_count", p.ReinforcementCount),
			zap.Bool("active", p.Active),
		)
		touched = append(touched, *p)
	}
	return touched, nil
}

// NewPattern creates a pattern from its first rating.
func NewPattern(m Mapping, rating int, excerpt string, now time.Time) types.LearnedPattern {
	confidence := InitialNegative
	if rating >= PositiveRatingCutoff {
		confidence = InitialPositive
	}
	p := types.LearnedPattern{
		ID:                 uuid.New().String(),
		Type:               m.Type,
		Key:                string(m.Tag),
		Category:           m.Category,
		Confidence:         confidence,
		ReinforcementCount: 1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if excerpt != "" {
		p.Examples = []string{excerpt}
	}
	p.Active = p.Confidence > types.ActivationThreshold
	return p
}

// Reinforce applies one rating to an existing pattern in place.
func Reinforce(p *types.LearnedPattern, rating int, excerpt string, now time.Time) {
	if rating >= PositiveRatingCutoff {
		p.Confidence += PositiveStep
	} else {
		p.Confidence -= NegativeStep
	}
	p.Confidence = clamp(round(p.Confidence))

	if excerpt != "" {
		p.Examples = append(p.Examples, excerpt)
		if over := len(p.Examples) - types.MaxPatternExamples; over > 0 {
			p.Examples = append([]string(nil), p.Examples[over:]...)
		}
	}
	p.ReinforcementCount++
	p.Active = p.Confidence > types.ActivationThreshold
	p.UpdatedAt = now
}

func clamp(c float64) float64 {
	return math.Max(types.MinConfidence, math.Min(types.MaxConfidence, c))
}

// round trims float drift so repeated steps land on exact hundredths.
func round(c float64) float64 {
	return math.Round(c*1e6) / 1e6
}
