// Package redis provides a Redis-backed event store. Each aggregate stream
// is a Redis list of JSON envelopes; RPUSH preserves append order and
// LRANGE returns the full stream for replay.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/eventstore"
)

const (
	keyPrefix      = "flowmesh:events:"
	connectTimeout = 5 * time.Second
)

type Store struct {
	client goredis.UniversalClient
}

// NewStore connects to Redis using a standard connection URL
// (redis://host:port/db) and verifies the connection.
func NewStore(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests with miniredis.
func NewStoreWithClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func streamKey(workflowID string) string {
	return keyPrefix + workflowID
}

func (s *Store) Append(ctx context.Context, event events.Event) error {
	env, err := events.Wrap(event)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if err := s.client.RPush(ctx, streamKey(event.GetWorkflowID()), payload).Err(); err != nil {
		return fmt.Errorf("failed to append event to redis: %w", err)
	}

	return nil
}

func (s *Store) Read(ctx context.Context, workflowID string) ([]events.Event, error) {
	lines, err := s.client.LRange(ctx, streamKey(workflowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream from redis: %w", err)
	}

	if len(lines) == 0 {
		return nil, eventstore.ErrStreamNotFound
	}

	stream := make([]events.Event, 0, len(lines))

	for _, line := range lines {
		var env events.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			return nil, fmt.Errorf("corrupt stream for %s: %w", workflowID, err)
		}

		event, err := events.Unwrap(env)
		if err != nil {
			return nil, fmt.Errorf("corrupt stream for %s: %w", workflowID, err)
		}

		stream = append(stream, event)
	}

	return stream, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
