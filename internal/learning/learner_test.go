package learning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-coach/internal/types"
)

type memPatterns struct {
	mu   sync.Mutex
	byID map[string]*types.LearnedPattern
}

func newMemPatterns() *memPatterns {
	return &memPatterns{byID: map[string]*types.LearnedPattern{}}
}

func (m *memPatterns) MutatePattern(_ context.Context, t types.PatternType, key string, fn func(p *types.LearnedPattern, found bool) error) (*types.LearnedPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(t) + "/" + key
	p, found := m.byID[k]
	if !found {
		p = &types.LearnedPattern{}
	}
	cp := *p
	if err := fn(&cp, found); err != nil {
		return nil, err
	}
	m.byID[k] = &cp
	out := cp
	return &out, nil
}

func (m *memPatterns) get(t types.PatternType, key string) *types.LearnedPattern {
	return m.byID[string(t)+"/"+key]
}

func TestLearn_InventedDataTwiceWithLowRating(t *testing.T) {
	store := newMemPatterns()
	l := NewLearner(store, nil, nil)
	ctx := context.Background()

	_, err := l.Learn(ctx, "I made up a number", []string{"invented_data"}, 1)
	require.NoError(t, err)
	p := store.get(types.PatternAvoidPhrase, "invented_data")
	require.NotNil(t, p)
	assert.InDelta(t, 0.45, p.Confidence, 1e-9)
	assert.Equal(t, 1, p.ReinforcementCount)
	assert.True(t, p.Active)

	_, err = l.Learn(ctx, "again", []string{"invented_data"}, 1)
	require.NoError(t, err)
	p = store.get(types.PatternAvoidPhrase, "invented_data")
	assert.InDelta(t, 0.39, p.Confidence, 1e-9)
	assert.Equal(t, 2, p.ReinforcementCount)
	assert.False(t, p.Active)
	assert.Equal(t, []string{"I made up a number", "again"}, p.Examples)
}

func TestLearn_PositiveCreateAndReinforce(t *testing.T) {
	store := newMemPatterns()
	l := NewLearner(store, nil, nil)

	touched, err := l.Learn(context.Background(), "Led a team of 5", []string{"strong_verbs", "quantified_impact", "strong_verbs"}, 5)
	require.NoError(t, err)
	require.Len(t, touched, 2)
	assert.InDelta(t, 0.65, touched[0].Confidence, 1e-9)
	assert.Equal(t, "wording", touched[0].Category)
	assert.Equal(t, "impact", touched[1].Category)

	_, err = l.Learn(context.Background(), "x", []string{"strong_verbs"}, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.73, store.get(types.PatternPreferredPhrase, "strong_verbs").Confidence, 1e-9)
}

func TestLearn_UnknownTagsIgnored(t *testing.T) {
	store := newMemPatterns()
	l := NewLearner(store, nil, nil)

	touched, err := l.Learn(context.Background(), "text", []string{"not_a_tag", ""}, 5)
	require.NoError(t, err)
	assert.Empty(t, touched)
	assert.Empty(t, store.byID)
}

func TestLearn_RejectsOutOfRangeRating(t *testing.T) {
	l := NewLearner(newMemPatterns(), nil, nil)
	_, err := l.Learn(context.Background(), "text", []string{"pushy"}, 0)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestReinforce_ClampsConfidence(t *testing.T) {
	now := time.Now()
	p := types.LearnedPattern{Confidence: 0.97}
	Reinforce(&p, 5, "", now)
	assert.Equal(t, types.MaxConfidence, p.Confidence)

	p = types.LearnedPattern{Confidence: 0.12}
	Reinforce(&p, 1, "", now)
	assert.Equal(t, types.MinConfidence, p.Confidence)
	assert.False(t, p.Active)

	for i := 0; i < 50; i++ {
		Reinforce(&p, 1+i%5, "", now)
		assert.GreaterOrEqual(t, p.Confidence, types.MinConfidence)
		assert.LessOrEqual(t, p.Confidence, types.MaxConfidence)
	}
}

func TestReinforce_ExamplesFIFO(t *testing.T) {
	p := types.LearnedPattern{Confidence: 0.5}
	for i := 0; i < 15; i++ {
		Reinforce(&p, 4, string(rune('a'+i)), time.Now())
	}
	require.Len(t, p.Examples, types.MaxPatternExamples)
	assert.Equal(t, "f", p.Examples[0])
	assert.Equal(t, "o", p.Examples[9])
	assert.Equal(t, 15, p.ReinforcementCount)
}

func TestLearn_TruncatesExcerpt(t *testing.T) {
	store := newMemPatterns()
	l := NewLearner(store, nil, nil)
	long := strings.Repeat("word ", 100)

	_, err := l.Learn(context.Background(), long, []string{"too_long"}, 2)
	require.NoError(t, err)
	ex := store.get(types.PatternFormatRule, "too_long").Examples[0]
	assert.LessOrEqual(t, len([]rune(ex)), ExcerptLength+3)
	assert.True(t, strings.HasSuffix(ex, "..."))
}

func TestLearn_ConcurrentReinforcementsSerialized(t *testing.T) {
	store := newMemPatterns()
	l := NewLearner(store, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Learn(context.Background(), "t", []string{"friendly_tone"}, 5)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, store.get(types.PatternTonePreference, "friendly_tone").ReinforcementCount)
}
