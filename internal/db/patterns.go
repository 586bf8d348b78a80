package db

import (
	"context"

	"github.com/jonathan/resume-coach/internal/types"
)

// patternRecordID keys patterns by their natural identity, so concurrent
// learners contend on the same row instead of creating duplicates.
func patternRecordID(t types.PatternType, key string) string {
	return string(t) + ":" + key
}

// MutatePattern applies fn to the (type, key) pattern inside a transaction,
// holding a row lock for the read-modify-write.
func (s *Store) MutatePattern(ctx context.Context, t types.PatternType, key string, fn func(p *types.LearnedPattern, found bool) error) (*types.LearnedPattern, error) {
	id := patternRecordID(t, key)
	var out types.LearnedPattern
	err := s.c.InTx(ctx, func(tx Tx) error {
		p, err := getForUpdateAs[types.LearnedPattern](ctx, tx, CollPatterns, id)
		found := err == nil
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			if err := tx.Lock(ctx, CollPatterns); err != nil {
				return err
			}
			// Another learner may have created it while we waited.
			if p, err = getAs[types.LearnedPattern](ctx, tx, CollPatterns, id); err == nil {
				found = true
			} else if !IsNotFound(err) {
				return err
			} else {
				p = &types.LearnedPattern{}
			}
		}
		if err := fn(p, found); err != nil {
			return err
		}
		p.Type, p.Key = t, key
		out = *p
		return tx.Upsert(ctx, CollPatterns, id, p)
	})
	if err != nil {
		return nil, persistErr("update pattern", err)
	}
	return &out, nil
}

// GetPattern retrieves a pattern by type and key.
func (s *Store) GetPattern(ctx context.Context, t types.PatternType, key string) (*types.LearnedPattern, error) {
	return getAs[types.LearnedPattern](ctx, s.c, CollPatterns, patternRecordID(t, key))
}

// ListPatterns returns patterns, optionally only active ones.
func (s *Store) ListPatterns(ctx context.Context, activeOnly bool) ([]types.LearnedPattern, error) {
	f := Filter{}
	if activeOnly {
		f.Where = map[string]any{"active": true}
	}
	return listAs[types.LearnedPattern](ctx, s.c, CollPatterns, f)
}
