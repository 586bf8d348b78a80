package db

import (
	"context"
	"time"

	"github.com/jonathan/resume-coach/internal/types"
)

// GetActivePrompt returns the active prompt version, or nil when none exists.
func (s *Store) GetActivePrompt(ctx context.Context) (*types.PromptVersion, error) {
	active, err := listAs[types.PromptVersion](ctx, s.c, CollPrompts, Filter{
		Where: map[string]any{"active": true},
		Desc:  true,
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

// GetPromptVersion retrieves a prompt version by id.
func (s *Store) GetPromptVersion(ctx context.Context, id string) (*types.PromptVersion, error) {
	return getAs[types.PromptVersion](ctx, s.c, CollPrompts, id)
}

// ListPromptVersions returns all prompt versions, oldest first.
func (s *Store) ListPromptVersions(ctx context.Context) ([]types.PromptVersion, error) {
	return listAs[types.PromptVersion](ctx, s.c, CollPrompts, Filter{})
}

// CreatePromptVersion stores pv. When activate is set, the previously active
// version is deactivated in the same transaction.
func (s *Store) CreatePromptVersion(ctx context.Context, pv *types.PromptVersion, activate bool) error {
	err := s.c.InTx(ctx, func(tx Tx) error {
		if err := tx.Lock(ctx, CollPrompts); err != nil {
			return err
		}
		pv.Active = false
		if activate {
			if err := deactivateAll(ctx, tx); err != nil {
				return err
			}
			now := time.Now().UTC()
			pv.Active = true
			pv.ActivatedAt = &now
		}
		return tx.Upsert(ctx, CollPrompts, pv.ID, pv)
	})
	return persistErr("create prompt version", err)
}

// ActivatePrompt swaps the active flag to id in one transaction.
func (s *Store) ActivatePrompt(ctx context.Context, id string) (*types.PromptVersion, error) {
	var out *types.PromptVersion
	err := s.c.InTx(ctx, func(tx Tx) error {
		if err := tx.Lock(ctx, CollPrompts); err != nil {
			return err
		}
		target, err := getForUpdateAs[types.PromptVersion](ctx, tx, CollPrompts, id)
		if err != nil {
			return err
		}
		if err := deactivateAll(ctx, tx); err != nil {
			return err
		}
		now := time.Now().UTC()
		target.Active = true
		target.ActivatedAt = &now
		out = target
		return tx.Upsert(ctx, CollPrompts, id, target)
	})
	if err != nil {
		return nil, persistErr("activate prompt version", err)
	}
	return out, nil
}

func deactivateAll(ctx context.Context, tx Tx) error {
	active, err := listAs[types.PromptVersion](ctx, tx, CollPrompts, Filter{Where: map[string]any{"active": true}})
	if err != nil {
		return err
	}
	for i := range active {
		active[i].Active = false
		if err := tx.Upsert(ctx, CollPrompts, active[i].ID, &active[i]); err != nil {
			return err
		}
	}
	return nil
}

// RecordPromptRating folds a rating into a version's aggregates.
func (s *Store) RecordPromptRating(ctx context.Context, id string, rating int) (*types.PromptVersion, error) {
	var out *types.PromptVersion
	err := s.c.InTx(ctx, func(tx Tx) error {
		pv, err := getForUpdateAs[types.PromptVersion](ctx, tx, CollPrompts, id)
		if err != nil {
			return err
		}
		pv.Ratings = pv.Ratings.Add(rating)
		out = pv
		return tx.Upsert(ctx, CollPrompts, id, pv)
	})
	if err != nil {
		return nil, persistErr("record prompt rating", err)
	}
	return out, nil
}
