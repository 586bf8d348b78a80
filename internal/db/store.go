package db

import (
	"context"
	"fmt"
	"strings"
)

// Drivers accepted by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Store provides the typed operations of the coach over any engine.
type Store struct {
	c Collections
}

// NewStore wraps an engine.
func NewStore(c Collections) *Store {
	return &Store{c: c}
}

// Open connects to the engine named by driver.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql", "pgx":
		pg, err := Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewStore(pg), nil
	case DriverSQLite, "sqlite3":
		if dsn == "" {
			dsn = "file:resume-coach.db?_foreign_keys=on"
		}
		s, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return NewStore(s), nil
	case DriverMemory, "":
		return NewStore(NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// Close releases the engine.
func (s *Store) Close() error {
	return s.c.Close()
}

// Collections exposes the underlying engine.
func (s *Store) Collections() Collections {
	return s.c
}

func getAs[T any](ctx context.Context, r Reader, c Collection, id string) (*T, error) {
	rec, err := r.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := rec.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func getForUpdateAs[T any](ctx context.Context, tx Tx, c Collection, id string) (*T, error) {
	rec, err := tx.GetForUpdate(ctx, c, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := rec.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func listAs[T any](ctx context.Context, r Reader, c Collection, f Filter) ([]T, error) {
	recs, err := r.List(ctx, c, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for i := range recs {
		var v T
		if err := recs[i].Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
