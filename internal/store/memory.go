package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory. It backs tests
// and is the in-process half of FileStore.
type MemoryStore struct {
	mu   sync.RWMutex
	cols map[string]map[string]map[string]any

	// afterWrite, when set, runs while the write lock is still held.
	// FileStore uses it to persist mutations.
	afterWrite func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cols: map[string]map[string]map[string]any{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.cols[collection][id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.cols[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Doc, 0)
	for _, id := range ids {
		if q.StartAfter != "" && id <= q.StartAfter {
			continue
		}
		if !matchesFilters(col[id], q.Filters) {
			continue
		}
		out = append(out, Doc{ID: id, Fields: cloneFields(col[id])})
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if s.cols[collection] == nil {
		s.cols[collection] = map[string]map[string]any{}
	}
	s.cols[collection][id] = cloneFields(fields)
	if err := s.persistLocked(); err != nil {
		return Doc{}, err
	}
	return Doc{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range cloneFields(fields) {
		doc[k] = v
	}
	return s.persistLocked()
}

func (s *MemoryStore) AtomicIncrement(ctx context.Context, collection, id, field string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	cur, _ := toFloat(doc[field])
	doc[field] = cur + amount
	return s.persistLocked()
}

func (s *MemoryStore) ServerTimestamp() time.Time {
	return time.Now().UTC()
}

// Seed inserts a document with a caller-chosen id. Test and migration
// helper; not part of the Store contract.
func (s *MemoryStore) Seed(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cols[collection] == nil {
		s.cols[collection] = map[string]map[string]any{}
	}
	s.cols[collection][id] = cloneFields(fields)
	_ = s.persistLocked()
}

func (s *MemoryStore) persistLocked() error {
	if s.afterWrite == nil {
		return nil
	}
	return s.afterWrite()
}

func matchesFilters(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		cmp, ok := compareValues(fields[f.Field], f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two field values of compatible kinds. Numbers
// compare numerically regardless of encoding; times compare as
// instants, including RFC 3339 strings left behind by a JSON reload.
func compareValues(a, b any) (int, bool) {
	if at, aok := toTime(a); aok {
		bt, bok := toTime(b)
		if !bok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		if ab == bb {
			return 0, true
		}
		if !ab {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
