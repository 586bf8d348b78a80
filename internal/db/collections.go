// Package db provides storage for documents, turns, feedback, learned
// patterns, prompt versions and training progress.
//
// Storage engines only implement a small collection interface (get, list,
// upsert, delete over JSON records, plus transactions). Store builds the
// typed operations on top of it, so every engine behaves the same.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Collection names a set of records.
type Collection string

// Collections used by the coach
const (
	CollDocuments   Collection = "documents"
	CollTurns       Collection = "turns"
	CollFeedback    Collection = "feedback"
	CollPatterns    Collection = "patterns"
	CollPrompts     Collection = "prompt_versions"
	CollProgress    Collection = "training_progress"
	CollTestRecords Collection = "training_tests"
)

// Record is one stored JSON value. Seq increases with insertion order.
type Record struct {
	Collection Collection
	ID         string
	Data       json.RawMessage
	Seq        int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the record data into dst.
func (r *Record) Decode(dst any) error {
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return fmt.Errorf("failed to decode %s %q: %w", r.Collection, r.ID, err)
	}
	return nil
}

// Filter selects records by top-level field equality and orders them by
// insertion. A zero Limit means no limit.
type Filter struct {
	Where map[string]any
	Desc  bool
	Limit int
}

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (f Filter) validate() error {
	for k := range f.Where {
		if !fieldName.MatchString(k) {
			return fmt.Errorf("invalid filter field %q", k)
		}
	}
	if f.Limit < 0 {
		return fmt.Errorf("invalid limit %d", f.Limit)
	}
	return nil
}

// Reader reads records.
type Reader interface {
	Get(ctx context.Context, c Collection, id string) (*Record, error)
	List(ctx context.Context, c Collection, f Filter) ([]Record, error)
}

// Writer writes records.
type Writer interface {
	Upsert(ctx context.Context, c Collection, id string, value any) error
	Delete(ctx context.Context, c Collection, id string) error
}

// Tx is a unit of work. Nothing it writes is visible to others until the
// enclosing InTx returns nil.
type Tx interface {
	Reader
	Writer
	// GetForUpdate reads a record and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, c Collection, id string) (*Record, error)
	// Lock serializes transactions that touch the collection as a whole.
	Lock(ctx context.Context, c Collection) error
}

// Collections is a storage engine.
type Collections interface {
	Reader
	Writer
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

func marshalValue(value any) ([]byte, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}
