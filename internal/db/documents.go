package db

import (
	"context"
	"time"

	"github.com/jonathan/resume-coach/internal/types"
)

// CreateDocument stores a new document record.
func (s *Store) CreateDocument(ctx context.Context, rec *types.DocumentRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = types.StatusDraft
	}
	return persistErr("create document", s.c.Upsert(ctx, CollDocuments, rec.ID, rec))
}

// GetDocument retrieves a document record by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.DocumentRecord, error) {
	return getAs[types.DocumentRecord](ctx, s.c, CollDocuments, id)
}

// ListDocuments lists documents, optionally restricted to one owner.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]types.DocumentRecord, error) {
	f := Filter{Desc: true}
	if ownerID != "" {
		f.Where = map[string]any{"owner_id": ownerID}
	}
	return listAs[types.DocumentRecord](ctx, s.c, CollDocuments, f)
}

// CloseDocument locks a document against further edits.
func (s *Store) CloseDocument(ctx context.Context, id string) (*types.DocumentRecord, error) {
	var out *types.DocumentRecord
	err := s.c.InTx(ctx, func(tx Tx) error {
		rec, err := getForUpdateAs[types.DocumentRecord](ctx, tx, CollDocuments, id)
		if err != nil {
			return err
		}
		rec.Status = types.StatusClosed
		rec.Revision++
		rec.UpdatedAt = time.Now().UTC()
		out = rec
		return tx.Upsert(ctx, CollDocuments, id, rec)
	})
	if err != nil {
		return nil, persistErr("close document", err)
	}
	return out, nil
}

// DeleteDocument removes a document and its turns.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	err := s.c.InTx(ctx, func(tx Tx) error {
		turns, err := tx.List(ctx, CollTurns, Filter{Where: map[string]any{"document_id": id}})
		if err != nil {
			return err
		}
		for _, t := range turns {
			if err := tx.Delete(ctx, CollTurns, t.ID); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, CollDocuments, id)
	})
	return persistErr("delete document", err)
}
