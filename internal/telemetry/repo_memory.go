package telemetry

import (
	"encoding/json"
	"sync"
	"time"
)

// Repository is an append-only event sink with time/type retrieval.
type Repository interface {
	RecordEvent(eventType EventType, metadata EventMetadata) error
	GetEvents(since time.Time, eventTypes []EventType) ([]Event, error)
	Clear() error
}

// MemoryRepository keeps events in process memory. The daemon's stats
// endpoint reads from it; nothing here survives a restart, which is
// fine for balance tuning.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) RecordEvent(eventType EventType, metadata EventMetadata) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ID:        len(r.events) + 1,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  string(payload),
	})
	return nil
}

func (r *MemoryRepository) GetEvents(since time.Time, eventTypes []EventType) ([]Event, error) {
	wanted := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		if ev.Timestamp.Before(since) {
			continue
		}
		if len(wanted) > 0 && !wanted[ev.Type] {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *MemoryRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	return nil
}

// Record is a nil-safe convenience for services holding an optional
// repository. Telemetry failures are never allowed to fail the
// operation that emitted them.
func Record(repo Repository, eventType EventType, metadata EventMetadata) {
	if repo == nil {
		return
	}
	_ = repo.RecordEvent(eventType, metadata)
}
