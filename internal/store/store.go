package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Doc is one document in a collection.
type Doc struct {
	ID     string
	Fields map[string]any
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter constrains a query on a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from a collection. Results are ordered by
// document id; StartAfter and Limit page through them cursor-style.
type Query struct {
	Filters    []Filter
	StartAfter string
	Limit      int
}

// Store is the keyed, hierarchical document store the engine consumes.
// Collection paths are slash-separated ("users/<uid>/commonTasks").
// The engine never defines the wire format; implementations here exist
// for the daemon's own persistence and for tests.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	Create(ctx context.Context, collection string, fields map[string]any) (Doc, error)
	// Update merges the given top-level fields into the document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// AtomicIncrement adds amount to a numeric field under the store's
	// write lock, creating the field at zero if absent.
	AtomicIncrement(ctx context.Context, collection, id, field string, amount float64) error
	ServerTimestamp() time.Time
}
