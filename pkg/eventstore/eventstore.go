// Package eventstore provides append-only storage for domain event streams,
// one ordered stream per workflow aggregate. The store is the durability
// boundary: the aggregate and router hold no persistent state of their own.
package eventstore

import (
	"context"
	"errors"

	"github.com/flowmesh/flowmesh/pkg/events"
)

// ErrStreamNotFound is returned by Read when no events exist for the id.
var ErrStreamNotFound = errors.New("event stream not found")

// Store is the append/read contract. Append preserves call order within an
// aggregate; Read returns the stream in append order, ready for replay.
type Store interface {
	Append(ctx context.Context, event events.Event) error
	Read(ctx context.Context, workflowID string) ([]events.Event, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsStreamNotFound reports whether err means the aggregate has no stream.
func IsStreamNotFound(err error) bool {
	return errors.Is(err, ErrStreamNotFound)
}
