package services

import (
	"sync"

	"github.com/flowmesh/flowmesh/pkg/events"
)

// instanceIndex tracks which workflows are currently running so the timeout
// sweeper can scan them without reading every stream in the store. It is a
// best-effort in-process cache rebuilt implicitly as commands flow through
// the service.
type instanceIndex struct {
	mu      sync.RWMutex
	running map[string]struct{}
}

func newInstanceIndex() *instanceIndex {
	return &instanceIndex{running: make(map[string]struct{})}
}

func (idx *instanceIndex) observe(event events.Event) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := event.GetWorkflowID()

	switch event.(type) {
	case events.WorkflowStarted, events.WorkflowResumed:
		idx.running[id] = struct{}{}
	case events.WorkflowPaused, events.WorkflowFailed, events.WorkflowCompleted:
		delete(idx.running, id)
	}
}

func (idx *instanceIndex) ids() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.running))
	for id := range idx.running {
		out = append(out, id)
	}

	return out
}
