// Package file provides a file-backed event store: one JSON-lines file per
// aggregate stream under a root directory. Suited to development and small
// single-node deployments.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/eventstore"
)

const dirPermissions = 0o755

type Store struct {
	root string
	mu   sync.Mutex
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create event store directory: %w", err)
	}

	return &Store{root: root}, nil
}

func (s *Store) streamPath(workflowID string) string {
	return filepath.Join(s.root, workflowID+".jsonl")
}

func (s *Store) Append(_ context.Context, event events.Event) error {
	env, err := events.Wrap(event)
	if err != nil {
		return err
	}

	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.streamPath(event.GetWorkflowID()),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open stream file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

func (s *Store) Read(_ context.Context, workflowID string) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.streamPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eventstore.ErrStreamNotFound
		}

		return nil, fmt.Errorf("failed to open stream file: %w", err)
	}
	defer f.Close()

	var stream []events.Event

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var env events.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return nil, fmt.Errorf("corrupt stream for %s: %w", workflowID, err)
		}

		event, err := events.Unwrap(env)
		if err != nil {
			return nil, fmt.Errorf("corrupt stream for %s: %w", workflowID, err)
		}

		stream = append(stream, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream for %s: %w", workflowID, err)
	}

	return stream, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("event store directory unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("event store path %s is not a directory", s.root)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
