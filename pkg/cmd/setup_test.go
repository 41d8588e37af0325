package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/config"
	"github.com/flowmesh/flowmesh/pkg/events"
)

func TestNewEventStore_Memory(t *testing.T) {
	store, err := NewEventStore(context.Background(), slog.Default(), config.StoreConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestNewEventStore_File(t *testing.T) {
	store, err := NewEventStore(context.Background(), slog.Default(), config.StoreConfig{
		Type: "file",
		Dir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestNewEventStore_UnknownType(t *testing.T) {
	_, err := NewEventStore(context.Background(), slog.Default(), config.StoreConfig{Type: "tape"})
	assert.Error(t, err)
}

// The configured channel capacity must reach registrations made through
// plain Register.
func TestNewRouter_ChannelCapacityFromConfig(t *testing.T) {
	r := NewRouter(slog.Default(), config.RouterConfig{ChannelCapacity: 1})

	_, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Route(ctx, events.WorkflowCreated{
			BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, "wf-1"),
			Name:      "capacity check",
		})
		require.NoError(t, err)
	}

	stats := r.Stats()["event.workflow.created"]
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestNewRouter_DeadLetterFromConfig(t *testing.T) {
	r := NewRouter(slog.Default(), config.RouterConfig{ChannelCapacity: 100, DeadLetterCapacity: 10})
	assert.NotNil(t, r.DeadLetters())

	r = NewRouter(slog.Default(), config.RouterConfig{ChannelCapacity: 100})
	assert.Nil(t, r.DeadLetters())
}
