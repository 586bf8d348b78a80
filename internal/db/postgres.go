package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS coach_records (
    seq        BIGSERIAL,
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS coach_records_data_idx ON coach_records USING GIN (data);
CREATE INDEX IF NOT EXISTS coach_records_seq_idx ON coach_records (collection, seq);
`

// DB is the PostgreSQL engine, backed by a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// pgQuerier is satisfied by both the pool and a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgSelect = `SELECT collection, id, data, seq, created_at, updated_at FROM coach_records`

// Get retrieves a record by collection and id
func (db *DB) Get(ctx context.Context, c Collection, id string) (*Record, error) {
	return pgGet(ctx, db.pool, c, id, false)
}

// List retrieves records matching the filter
func (db *DB) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	return pgList(ctx, db.pool, c, f)
}

// Upsert inserts or replaces a record
func (db *DB) Upsert(ctx context.Context, c Collection, id string, value any) error {
	return pgUpsert(ctx, db.pool, c, id, value)
}

// Delete removes a record
func (db *DB) Delete(ctx context.Context, c Collection, id string) error {
	return pgDelete(ctx, db.pool, c, id)
}

// InTx runs fn inside a database transaction, committing if it returns nil.
func (db *DB) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, c Collection, id string) (*Record, error) {
	return pgGet(ctx, t.tx, c, id, false)
}

func (t *pgTx) GetForUpdate(ctx context.Context, c Collection, id string) (*Record, error) {
	return pgGet(ctx, t.tx, c, id, true)
}

func (t *pgTx) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	return pgList(ctx, t.tx, c, f)
}

func (t *pgTx) Upsert(ctx context.Context, c Collection, id string, value any) error {
	return pgUpsert(ctx, t.tx, c, id, value)
}

func (t *pgTx) Delete(ctx context.Context, c Collection, id string) error {
	return pgDelete(ctx, t.tx, c, id)
}

// Lock takes a transaction-scoped advisory lock keyed by the collection name.
func (t *pgTx) Lock(ctx context.Context, c Collection) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(c)); err != nil {
		return fmt.Errorf("failed to lock %s: %w", c, err)
	}
	return nil
}

func pgGet(ctx context.Context, q pgQuerier, c Collection, id string, forUpdate bool) (*Record, error) {
	query := pgSelect + ` WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var rec Record
	var coll string
	err := q.QueryRow(ctx, query, string(c), id).Scan(&coll, &rec.ID, &rec.Data, &rec.Seq, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Collection: c, ID: id}
		}
		return nil, fmt.Errorf("failed to get %s: %w", c, err)
	}
	rec.Collection = Collection(coll)
	return &rec, nil
}

func pgList(ctx context.Context, q pgQuerier, c Collection, f Filter) ([]Record, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	query := pgSelect + ` WHERE collection = $1`
	args := []any{string(c)}
	if len(f.Where) > 0 {
		match, err := json.Marshal(f.Where)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
		query += ` AND data @> $2::jsonb`
		args = append(args, match)
	}
	var order strings.Builder
	order.WriteString(` ORDER BY seq`)
	if f.Desc {
		order.WriteString(` DESC`)
	}
	if f.Limit > 0 {
		fmt.Fprintf(&order, ` LIMIT %d`, f.Limit)
	}
	query += order.String()

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var coll string
		if err := rows.Scan(&coll, &rec.ID, &rec.Data, &rec.Seq, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}
		rec.Collection = Collection(coll)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c, err)
	}
	return out, nil
}

func pgUpsert(ctx context.Context, q pgQuerier, c Collection, id string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO coach_records (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		string(c), id, data,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", c, err)
	}
	return nil
}

func pgDelete(ctx context.Context, q pgQuerier, c Collection, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM coach_records WHERE collection = $1 AND id = $2`, string(c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", c, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Collection: c, ID: id}
	}
	return nil
}
