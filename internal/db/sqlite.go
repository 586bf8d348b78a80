package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS coach_records (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (collection, id)
);
`

// SQLiteStore is the SQLite engine. A single connection is used, so
// transactions are serialized by the database handle itself.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and ensures the schema exists.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqliteSelect = `SELECT collection, id, data, rowid, created_at, updated_at FROM coach_records`

// Get retrieves a record by collection and id.
func (s *SQLiteStore) Get(ctx context.Context, c Collection, id string) (*Record, error) {
	return sqliteGet(ctx, s.db, c, id)
}

// List retrieves records matching the filter.
func (s *SQLiteStore) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	return sqliteList(ctx, s.db, c, f)
}

// Upsert inserts or replaces a record.
func (s *SQLiteStore) Upsert(ctx context.Context, c Collection, id string, value any) error {
	return sqliteUpsert(ctx, s.db, c, id, value)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, c Collection, id string) error {
	return sqliteDelete(ctx, s.db, c, id)
}

// InTx runs fn inside a transaction, committing if it returns nil.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(ctx context.Context, c Collection, id string) (*Record, error) {
	return sqliteGet(ctx, t.tx, c, id)
}

func (t *sqliteTx) GetForUpdate(ctx context.Context, c Collection, id string) (*Record, error) {
	return sqliteGet(ctx, t.tx, c, id)
}

func (t *sqliteTx) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	return sqliteList(ctx, t.tx, c, f)
}

func (t *sqliteTx) Upsert(ctx context.Context, c Collection, id string, value any) error {
	return sqliteUpsert(ctx, t.tx, c, id, value)
}

func (t *sqliteTx) Delete(ctx context.Context, c Collection, id string) error {
	return sqliteDelete(ctx, t.tx, c, id)
}

// Lock is a no-op: the single connection already serializes transactions.
func (t *sqliteTx) Lock(context.Context, Collection) error {
	return nil
}

func sqliteGet(ctx context.Context, q sqlQuerier, c Collection, id string) (*Record, error) {
	row := q.QueryRowContext(ctx, sqliteSelect+` WHERE collection = ? AND id = ?`, string(c), id)
	rec, err := scanSQLite(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Collection: c, ID: id}
		}
		return nil, fmt.Errorf("failed to get %s: %w", c, err)
	}
	return rec, nil
}

func sqliteList(ctx context.Context, q sqlQuerier, c Collection, f Filter) ([]Record, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(sqliteSelect)
	b.WriteString(` WHERE collection = ?`)
	args := []any{string(c)}

	keys := make([]string, 0, len(f.Where))
	for k := range f.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ` AND json_extract(data, '$.%s') = ?`, k)
		args = append(args, f.Where[k])
	}
	b.WriteString(` ORDER BY rowid`)
	if f.Desc {
		b.WriteString(` DESC`)
	}
	if f.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, f.Limit)
	}

	rows, err := q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLite(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c, err)
	}
	return out, nil
}

func scanSQLite(scan func(dest ...any) error) (*Record, error) {
	var (
		rec  Record
		coll string
		data string
	)
	if err := scan(&coll, &rec.ID, &data, &rec.Seq, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Collection = Collection(coll)
	rec.Data = []byte(data)
	return &rec, nil
}

func sqliteUpsert(ctx context.Context, q sqlQuerier, c Collection, id string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = q.ExecContext(ctx,
		`INSERT INTO coach_records (collection, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(c), id, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", c, err)
	}
	return nil
}

func sqliteDelete(ctx context.Context, q sqlQuerier, c Collection, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM coach_records WHERE collection = ? AND id = ?`, string(c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", c, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Collection: c, ID: id}
	}
	return nil
}
