// Package storetest provides in-memory Local and Remote store fakes with
// scripted failures, shared by tests across the repository packages.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/daybook-app/daybook/internal/store"
)

// Local is an in-memory store.Local with an optional forced failure.
type Local struct {
	mu      sync.Mutex
	data    map[string][]byte
	failErr error
}

// NewLocal returns an empty in-memory local store.
func NewLocal() *Local {
	return &Local{data: make(map[string][]byte)}
}

// Fail forces every subsequent operation to fail with err (nil to recover).
func (l *Local) Fail(err error) {
	l.mu.Lock()
	l.failErr = err
	l.mu.Unlock()
}

func (l *Local) Get(key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageUnavailable, l.failErr)
	}
	v, ok := l.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (l *Local) Set(key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageUnavailable, l.failErr)
	}
	v := make([]byte, len(value))
	copy(v, value)
	l.data[key] = v
	return nil
}

func (l *Local) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageUnavailable, l.failErr)
	}
	delete(l.data, key)
	return nil
}

func (l *Local) Keys(prefix string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageUnavailable, l.failErr)
	}
	var keys []string
	for k := range l.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// Remote is an in-memory store.Remote with an optional forced failure.
// Ordering and filtering mirror the production document store: fields are
// read from the JSON document value.
type Remote struct {
	mu      sync.Mutex
	data    map[string]map[string][]byte // collection -> key -> value
	failErr error

	// SetCalls counts individual Set invocations (for replay assertions).
	SetCalls int
	// BatchCalls counts BatchWrite invocations (for chunking assertions).
	BatchCalls int
}

// NewRemote returns an empty in-memory remote store.
func NewRemote() *Remote {
	return &Remote{data: make(map[string]map[string][]byte)}
}

// Fail forces every subsequent operation to fail with err (nil to recover).
func (r *Remote) Fail(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
}

func (r *Remote) check() error {
	if r.failErr != nil {
		return fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, r.failErr)
	}
	return nil
}

func (r *Remote) Get(ctx context.Context, collection, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return nil, err
	}
	v, ok := r.data[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (r *Remote) Set(ctx context.Context, collection, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.SetCalls++
	r.put(collection, key, value)
	return nil
}

func (r *Remote) put(collection, key string, value []byte) {
	if r.data[collection] == nil {
		r.data[collection] = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	r.data[collection][key] = v
}

func (r *Remote) Update(ctx context.Context, collection, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	if _, ok := r.data[collection][key]; !ok {
		return store.ErrNotFound
	}
	r.put(collection, key, value)
	return nil
}

func (r *Remote) Delete(ctx context.Context, collection, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	delete(r.data[collection], key)
	return nil
}

func (r *Remote) Query(ctx context.Context, collection string, opts store.QueryOptions) (*store.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return nil, err
	}

	type entry struct {
		key        string
		value      []byte
		orderValue string
	}

	var entries []entry
	for k, v := range r.data[collection] {
		fields := map[string]interface{}{}
		_ = json.Unmarshal(v, &fields)

		matched := true
		for _, w := range opts.Where {
			if fmt.Sprintf("%v", fields[w.Field]) != w.Value {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		ov := k
		if opts.OrderBy != "" {
			ov = ""
			if raw, ok := fields[opts.OrderBy]; ok {
				ov = fmt.Sprintf("%v", raw)
			}
		}
		entries = append(entries, entry{key: k, value: v, orderValue: ov})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.orderValue != b.orderValue {
			if opts.Descending {
				return a.orderValue > b.orderValue
			}
			return a.orderValue < b.orderValue
		}
		if opts.Descending {
			return a.key > b.key
		}
		return a.key < b.key
	})

	if opts.StartAfter != "" {
		ov, k, err := store.DecodeCursor(opts.StartAfter)
		if err != nil {
			return nil, err
		}
		idx := 0
		for i, e := range entries {
			if e.orderValue == ov && e.key == k {
				idx = i + 1
				break
			}
		}
		entries = entries[idx:]
	}

	page := &store.Page{}
	for _, e := range entries {
		if opts.Limit > 0 && len(page.Docs) == opts.Limit {
			break
		}
		out := make([]byte, len(e.value))
		copy(out, e.value)
		page.Docs = append(page.Docs, store.Doc{Key: e.key, Value: out})
	}

	if opts.Limit > 0 && len(page.Docs) == opts.Limit {
		last := entries[opts.Limit-1]
		page.NextCursor = store.EncodeCursor(last.orderValue, last.key)
	}
	return page, nil
}

func (r *Remote) BatchWrite(ctx context.Context, ops []store.Op) error {
	if len(ops) > store.MaxBatchSize {
		return fmt.Errorf("%w: %d > %d", store.ErrBatchTooLarge, len(ops), store.MaxBatchSize)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.BatchCalls++
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			r.put(op.Collection, op.Key, op.Value)
		case store.OpDelete:
			delete(r.data[op.Collection], op.Key)
		}
	}
	return nil
}

// Count returns the number of documents in a collection.
func (r *Remote) Count(collection string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data[collection])
}

// Raw returns the stored document bytes, or nil if absent.
func (r *Remote) Raw(collection, key string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[collection][key]
}
