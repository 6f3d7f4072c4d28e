// Package memory is the single-process audit store used when no database is
// configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"eduverify/pkg/domain"
	audit "eduverify/pkg/platform/audit"
)

// InMemoryStore keeps every event in append order with a per-student index
// keyed by the case-folded address.
type InMemoryStore struct {
	mu        sync.RWMutex
	log       []audit.Event
	byStudent map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byStudent: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := event.Student.Key()
	s.byStudent[key] = append(s.byStudent[key], len(s.log))
	s.log = append(s.log, event)
	return nil
}

// ListByStudent returns the student's events, oldest first.
func (s *InMemoryStore) ListByStudent(_ context.Context, student domain.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byStudent[student.Key()]
	out := make([]audit.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.log[i])
	}
	return out, nil
}

// All returns every stored event, oldest first.
func (s *InMemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.log)
}
