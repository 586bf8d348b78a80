package db

import (
	"context"
	"time"

	"github.com/jonathan/resume-coach/internal/types"
)

// AppendProgress adds an entry to the training progress ledger.
func (s *Store) AppendProgress(ctx context.Context, p *types.TrainingProgress) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return persistErr("append training progress", s.c.Upsert(ctx, CollProgress, p.ID, p))
}

// CurrentProgress returns the latest ledger entry, or nil when training never ran.
func (s *Store) CurrentProgress(ctx context.Context) (*types.TrainingProgress, error) {
	latest, err := listAs[types.TrainingProgress](ctx, s.c, CollProgress, Filter{Desc: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, nil
	}
	return &latest[0], nil
}

// SaveTestRecord stores the outcome of one graded scenario.
func (s *Store) SaveTestRecord(ctx context.Context, r *types.TestRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return persistErr("save test record", s.c.Upsert(ctx, CollTestRecords, r.ID, r))
}

// ListTestRecords returns the recorded scenario outcomes for a level, oldest first.
func (s *Store) ListTestRecords(ctx context.Context, level int) ([]types.TestRecord, error) {
	return listAs[types.TestRecord](ctx, s.c, CollTestRecords, Filter{Where: map[string]any{"level": level}})
}
