package surfaces

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"
)

var epoch = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// fakeStorage serves canned rows per table and records every call.
type fakeStorage struct {
	mu      sync.Mutex
	rows    map[string]any
	errs    map[string]error
	queries map[string]url.Values
	rpcArgs any
	inserts []any
	// gate, when set, blocks Select until it is closed or ctx ends.
	gate chan struct{}
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{rows: map[string]any{}, errs: map[string]error{}, queries: map[string]url.Values{}}
}

func (f *fakeStorage) set(table string, rows any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = rows
}

func (f *fakeStorage) fail(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[table] = err
}

func (f *fakeStorage) serve(key string, out any) error {
	f.mu.Lock()
	rows, err := f.rows[key], f.errs[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []any{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeStorage) Select(ctx context.Context, table string, query url.Values, out any) error {
	f.mu.Lock()
	f.queries[table] = query
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.serve(table, out)
}

func (f *fakeStorage) Insert(_ context.Context, table string, row any, out any) error {
	f.mu.Lock()
	f.inserts = append(f.inserts, row)
	f.mu.Unlock()
	if out == nil {
		return nil
	}
	return f.serve(table, out)
}

func (f *fakeStorage) RPC(_ context.Context, fn string, args any, out any) error {
	f.mu.Lock()
	f.rpcArgs = args
	f.mu.Unlock()
	return f.serve(fn, out)
}

func (f *fakeStorage) query(table string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[table]
}
