package db

import (
	"context"
	"time"

	"github.com/jonathan/resume-coach/internal/types"
)

// TurnCommit is everything one conversational turn writes.
type TurnCommit struct {
	// Document is the new document state, or nil when the turn did not change it.
	Document *types.DocumentRecord
	// ExpectedRevision is the revision the turn read; a different stored
	// revision aborts the commit with a ConflictError.
	ExpectedRevision int
	Turns            []*types.Turn
}

// CommitTurn writes the turn records and the document as one transaction.
func (s *Store) CommitTurn(ctx context.Context, commit TurnCommit) error {
	err := s.c.InTx(ctx, func(tx Tx) error {
		if commit.Document != nil {
			current, err := getForUpdateAs[types.DocumentRecord](ctx, tx, CollDocuments, commit.Document.ID)
			if err != nil {
				return err
			}
			if current.Revision != commit.ExpectedRevision {
				return &ConflictError{ID: current.ID, Expected: commit.ExpectedRevision, Actual: current.Revision}
			}
			commit.Document.Revision = current.Revision + 1
			commit.Document.UpdatedAt = time.Now().UTC()
			if err := tx.Upsert(ctx, CollDocuments, commit.Document.ID, commit.Document); err != nil {
				return err
			}
		}
		for _, t := range commit.Turns {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = time.Now().UTC()
			}
			if err := tx.Upsert(ctx, CollTurns, t.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
	return persistErr("commit turn", err)
}

// GetTurn retrieves a turn by id.
func (s *Store) GetTurn(ctx context.Context, id string) (*types.Turn, error) {
	return getAs[types.Turn](ctx, s.c, CollTurns, id)
}

// ListTurns returns the most recent limit turns of a document in
// chronological order. limit <= 0 returns all turns.
func (s *Store) ListTurns(ctx context.Context, documentID string, limit int) ([]types.Turn, error) {
	turns, err := listAs[types.Turn](ctx, s.c, CollTurns, Filter{
		Where: map[string]any{"document_id": documentID},
		Desc:  true,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CreateFeedback stores a feedback row.
func (s *Store) CreateFeedback(ctx context.Context, fb *types.Feedback) error {
	return persistErr("create feedback", s.c.Upsert(ctx, CollFeedback, fb.ID, fb))
}

// ListFeedback returns the feedback given on a turn.
func (s *Store) ListFeedback(ctx context.Context, turnID string) ([]types.Feedback, error) {
	return listAs[types.Feedback](ctx, s.c, CollFeedback, Filter{Where: map[string]any{"turn_id": turnID}})
}
