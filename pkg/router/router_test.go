package router

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/events"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func createdEvent(workflowID string) events.Event {
	return events.WorkflowCreated{
		BaseEvent:   events.NewBaseEvent(events.WorkflowCreatedEvent, workflowID),
		Name:        "routed workflow",
		Description: "router test fixture",
	}
}

func startedEvent(workflowID string) events.Event {
	return events.WorkflowStarted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowStartedEvent, workflowID),
		InstanceID: uuid.New().String(),
		StartStep:  "A",
	}
}

func TestRouter_RouteToExactPattern(t *testing.T) {
	r := NewRouter(testLogger())

	ch, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	delivered, err := r.Route(context.Background(), createdEvent("wf-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"event.workflow.created"}, delivered)

	routed := <-ch
	assert.Equal(t, "event.workflow.created", routed.Subject)
	assert.Equal(t, uint64(1), routed.GlobalSequence)
	assert.Equal(t, uint64(1), routed.AggregateSequence)
	assert.Equal(t, events.WorkflowCreatedEvent, routed.Event.GetType())
}

func TestRouter_Route_InvalidPatternRejected(t *testing.T) {
	r := NewRouter(testLogger())

	_, err := r.Register("event.>.workflow")
	assert.Error(t, err)

	_, err = r.Register("")
	assert.Error(t, err)
}

// Fan-out: a tail wildcard and an exact pattern both receive the same
// event carrying identical sequence stamps.
func TestRouter_FanOutSharesSequenceStamps(t *testing.T) {
	r := NewRouter(testLogger())

	wildcard, err := r.Register("event.workflow.>")
	require.NoError(t, err)

	exact, err := r.Register("event.workflow.started")
	require.NoError(t, err)

	delivered, err := r.Route(context.Background(), startedEvent("wf-1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"event.workflow.>", "event.workflow.started"}, delivered)

	fromWildcard := <-wildcard
	fromExact := <-exact
	assert.Equal(t, fromWildcard.GlobalSequence, fromExact.GlobalSequence)
	assert.Equal(t, fromWildcard.AggregateSequence, fromExact.AggregateSequence)
	assert.Equal(t, fromWildcard.Subject, fromExact.Subject)
}

func TestRouter_NonMatchingPatternSkipped(t *testing.T) {
	r := NewRouter(testLogger())

	ch, err := r.Register("event.workflow.failed")
	require.NoError(t, err)

	delivered, err := r.Route(context.Background(), createdEvent("wf-1"))
	require.NoError(t, err)
	assert.Empty(t, delivered)
	assert.Empty(t, ch)
}

func TestRouter_NoSubscribersIsNotAnError(t *testing.T) {
	r := NewRouter(testLogger())

	delivered, err := r.Route(context.Background(), createdEvent("wf-1"))
	require.NoError(t, err)
	assert.Empty(t, delivered)
}

// Sequences keep advancing while events are routed into the void, so a
// late subscriber observes the gap.
func TestRouter_SequencesAdvanceWithoutSubscribers(t *testing.T) {
	r := NewRouter(testLogger())

	_, err := r.Route(context.Background(), createdEvent("wf-1"))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), createdEvent("wf-2"))
	require.NoError(t, err)

	ch, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	_, err = r.Route(context.Background(), createdEvent("wf-3"))
	require.NoError(t, err)

	routed := <-ch
	assert.Equal(t, uint64(3), routed.GlobalSequence)
	assert.Equal(t, uint64(1), routed.AggregateSequence)
}

func TestRouter_DropWhenChannelFull(t *testing.T) {
	r := NewRouter(testLogger())

	ch, err := r.RegisterCap("event.workflow.created", 2)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := r.Route(ctx, createdEvent("wf-1"))
		require.NoError(t, err)
	}

	stats := r.Stats()["event.workflow.created"]
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(3), stats.Dropped)
	assert.Contains(t, stats.LastError, "channel full")

	// The two buffered deliveries are the first two routed.
	first := <-ch
	second := <-ch
	assert.Equal(t, uint64(1), first.GlobalSequence)
	assert.Equal(t, uint64(2), second.GlobalSequence)
}

// WithDefaultCapacity bounds plain Register calls, not just RegisterCap.
func TestRouter_ConfiguredDefaultCapacity(t *testing.T) {
	r := NewRouter(testLogger(), WithDefaultCapacity(2))

	_, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := r.Route(ctx, createdEvent("wf-1"))
		require.NoError(t, err)
	}

	stats := r.Stats()["event.workflow.created"]
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestRouter_DeadLetterCapturesDrops(t *testing.T) {
	r := NewRouter(testLogger(), WithDeadLetter(10))

	_, err := r.RegisterCap("event.workflow.created", 1)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Route(ctx, createdEvent("wf-1"))
		require.NoError(t, err)
	}

	dlq := r.DeadLetters()
	require.NotNil(t, dlq)
	require.Len(t, dlq, 2)

	dead := <-dlq
	assert.Equal(t, "event.workflow.created", dead.Pattern)
	assert.Equal(t, "event.workflow.created", dead.Subject)
	assert.Equal(t, 1, dead.RetryCount)
	assert.Equal(t, uint64(2), dead.GlobalSequence)
}

func TestRouter_DeadLettersNilWhenNotConfigured(t *testing.T) {
	r := NewRouter(testLogger())

	assert.Nil(t, r.DeadLetters())
}

// Re-registering a pattern joins the existing channel: the two receivers
// compete for deliveries instead of each getting a copy.
func TestRouter_RepeatRegistrationSharesChannel(t *testing.T) {
	r := NewRouter(testLogger())

	first, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	second, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	_, err = r.Route(context.Background(), createdEvent("wf-1"))
	require.NoError(t, err)

	stats := r.Stats()["event.workflow.created"]
	assert.Equal(t, 2, stats.Subscribers)
	assert.Equal(t, uint64(1), stats.Sent)

	// Exactly one delivery exists across both receivers.
	assert.Equal(t, 1, len(first)+len(second))
}

func TestRouter_Unregister(t *testing.T) {
	r := NewRouter(testLogger())

	_, err := r.Register("event.workflow.created")
	require.NoError(t, err)

	_, err = r.Register("event.workflow.created")
	require.NoError(t, err)

	require.NoError(t, r.Unregister("event.workflow.created"))
	assert.Equal(t, 1, r.Stats()["event.workflow.created"].Subscribers)

	require.NoError(t, r.Unregister("event.workflow.created"))
	assert.NotContains(t, r.Stats(), "event.workflow.created")

	assert.Error(t, r.Unregister("event.workflow.created"))
}

func TestConsumer_PollOrdersByGlobalSequence(t *testing.T) {
	r := NewRouter(testLogger())

	consumer, err := NewConsumer(r, "event.workflow.created", "event.workflow.started")
	require.NoError(t, err)
	defer consumer.Close()

	ctx := context.Background()

	// Interleave subjects so per-channel arrival order differs from the
	// global order.
	_, err = r.Route(ctx, createdEvent("wf-1"))
	require.NoError(t, err)
	_, err = r.Route(ctx, startedEvent("wf-1"))
	require.NoError(t, err)
	_, err = r.Route(ctx, createdEvent("wf-2"))
	require.NoError(t, err)
	_, err = r.Route(ctx, startedEvent("wf-2"))
	require.NoError(t, err)

	batch := consumer.Poll()
	require.Len(t, batch, 4)

	for i, routed := range batch {
		assert.Equal(t, uint64(i+1), routed.GlobalSequence)
	}

	assert.Empty(t, consumer.Poll(), "a second poll finds nothing pending")
}

func TestConsumer_RequiresPatterns(t *testing.T) {
	r := NewRouter(testLogger())

	_, err := NewConsumer(r)
	assert.Error(t, err)
}

func TestConsumer_AllOrNothingRegistration(t *testing.T) {
	r := NewRouter(testLogger())

	_, err := NewConsumer(r, "event.workflow.created", "bad.>.pattern")
	require.Error(t, err)

	assert.Empty(t, r.Stats(), "failed construction must leave no registrations")
}

func TestConsumer_CloseUnregisters(t *testing.T) {
	r := NewRouter(testLogger())

	consumer, err := NewConsumer(r, "event.workflow.>")
	require.NoError(t, err)

	consumer.Close()
	assert.Empty(t, r.Stats())
	assert.Empty(t, consumer.Patterns())
}
