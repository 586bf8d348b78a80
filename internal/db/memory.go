package db

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process engine for tests and local development.
// Transactions are serialized and buffered until commit.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	seq  int64
	data map[Collection]map[string]Record
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{data: make(map[Collection]map[string]Record)}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Get retrieves a record by collection and id.
func (m *Memory) Get(_ context.Context, c Collection, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[c][id]
	if !ok {
		return nil, &NotFoundError{Collection: c, ID: id}
	}
	return cloneRecord(rec), nil
}

// List retrieves records matching the filter.
func (m *Memory) List(_ context.Context, c Collection, f Filter) ([]Record, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	recs := make([]Record, 0, len(m.data[c]))
	for _, rec := range m.data[c] {
		recs = append(recs, *cloneRecord(rec))
	}
	m.mu.RUnlock()
	return filterRecords(recs, f)
}

// Upsert inserts or replaces a record.
func (m *Memory) Upsert(_ context.Context, c Collection, id string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(c, id, data)
	return nil
}

// Delete removes a record.
func (m *Memory) Delete(_ context.Context, c Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[c][id]; !ok {
		return &NotFoundError{Collection: c, ID: id}
	}
	delete(m.data[c], id)
	return nil
}

// put writes under m.mu.
func (m *Memory) put(c Collection, id string, data []byte) {
	if m.data[c] == nil {
		m.data[c] = make(map[string]Record)
	}
	now := time.Now().UTC()
	rec, ok := m.data[c][id]
	if !ok {
		m.seq++
		rec = Record{Collection: c, ID: id, Seq: m.seq, CreatedAt: now}
	}
	rec.Data = append(json.RawMessage(nil), data...)
	rec.UpdatedAt = now
	m.data[c][id] = rec
}

// InTx runs fn with writes buffered; they are applied only if fn returns nil.
func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{m: m, writes: make(map[Collection]map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range tx.order {
		data := tx.writes[w.c][w.id]
		if data == nil {
			delete(m.data[w.c], w.id)
			continue
		}
		m.put(w.c, w.id, data)
	}
	return nil
}

type memKey struct {
	c  Collection
	id string
}

type memTx struct {
	m      *Memory
	writes map[Collection]map[string][]byte // nil value marks a delete
	order  []memKey
}

func (t *memTx) Get(ctx context.Context, c Collection, id string) (*Record, error) {
	if data, ok := t.writes[c][id]; ok {
		if data == nil {
			return nil, &NotFoundError{Collection: c, ID: id}
		}
		rec, err := t.m.Get(ctx, c, id)
		if err != nil {
			rec = &Record{Collection: c, ID: id, CreatedAt: time.Now().UTC(), Seq: 1 << 62}
		}
		rec.Data = append(json.RawMessage(nil), data...)
		return rec, nil
	}
	return t.m.Get(ctx, c, id)
}

func (t *memTx) GetForUpdate(ctx context.Context, c Collection, id string) (*Record, error) {
	return t.Get(ctx, c, id)
}

func (t *memTx) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	base, err := t.m.List(ctx, c, Filter{})
	if err != nil {
		return nil, err
	}
	merged := make([]Record, 0, len(base))
	seen := make(map[string]bool)
	for _, rec := range base {
		seen[rec.ID] = true
		if data, ok := t.writes[c][rec.ID]; ok {
			if data == nil {
				continue
			}
			rec.Data = data
		}
		merged = append(merged, rec)
	}
	pending := int64(1 << 62)
	for _, k := range t.order {
		if k.c != c || seen[k.id] {
			continue
		}
		seen[k.id] = true
		if data := t.writes[c][k.id]; data != nil {
			pending++
			merged = append(merged, Record{Collection: c, ID: k.id, Data: data, Seq: pending})
		}
	}
	return filterRecords(merged, f)
}

func (t *memTx) Upsert(_ context.Context, c Collection, id string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	t.record(c, id, append([]byte(nil), data...))
	return nil
}

func (t *memTx) Delete(ctx context.Context, c Collection, id string) error {
	if _, err := t.Get(ctx, c, id); err != nil {
		return err
	}
	t.record(c, id, nil)
	return nil
}

// Lock is a no-op: memory transactions are already serialized.
func (t *memTx) Lock(context.Context, Collection) error {
	return nil
}

func (t *memTx) record(c Collection, id string, data []byte) {
	if t.writes[c] == nil {
		t.writes[c] = make(map[string][]byte)
	}
	if _, ok := t.writes[c][id]; !ok {
		t.order = append(t.order, memKey{c: c, id: id})
	}
	t.writes[c][id] = data
}

func filterRecords(recs []Record, f Filter) ([]Record, error) {
	var want map[string]json.RawMessage
	if len(f.Where) > 0 {
		want = make(map[string]json.RawMessage, len(f.Where))
		for k, v := range f.Where {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			want[k] = raw
		}
	}

	out := recs[:0]
	for _, rec := range recs {
		if want != nil {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(rec.Data, &fields); err != nil {
				continue
			}
			match := true
			for k, v := range want {
				if !bytes.Equal(bytes.TrimSpace(fields[k]), v) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if f.Desc {
			return out[i].Seq > out[j].Seq
		}
		return out[i].Seq < out[j].Seq
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func cloneRecord(r Record) *Record {
	r.Data = append(json.RawMessage(nil), r.Data...)
	return &r
}
