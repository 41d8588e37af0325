// Package memory provides an in-memory event store for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/eventstore"
)

type Store struct {
	mu      sync.RWMutex
	streams map[string][]events.Event
}

func NewStore() *Store {
	return &Store{
		streams: make(map[string][]events.Event),
	}
}

func (s *Store) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := event.GetWorkflowID()
	s.streams[id] = append(s.streams[id], event)

	return nil
}

func (s *Store) Read(_ context.Context, workflowID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, exists := s.streams[workflowID]
	if !exists {
		return nil, eventstore.ErrStreamNotFound
	}

	out := make([]events.Event, len(stream))
	copy(out, stream)

	return out, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
