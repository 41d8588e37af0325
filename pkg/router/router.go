// Package router fans domain events out to subscribers registered with
// NATS-style subject patterns. Delivery is non-blocking and at-most-once
// per channel: a full channel drops the message and counts it rather than
// stalling routing to other subscribers.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/sequence"
	"github.com/flowmesh/flowmesh/pkg/subject"
)

// DefaultChannelCapacity bounds each subject channel unless the
// registration overrides it.
const DefaultChannelCapacity = 10000

// RoutedEvent wraps a domain event with its subject and the sequence
// numbers stamped at route time. Immutable once built.
type RoutedEvent struct {
	Event             events.Event `json:"event"`
	Subject           string       `json:"subject"`
	GlobalSequence    uint64       `json:"global_sequence"`
	AggregateSequence uint64       `json:"aggregate_sequence"`
	RetryCount        int          `json:"retry_count"`
	RoutedAt          time.Time    `json:"routed_at"`
}

// DeadLetter is a delivery that could not be made to a full subscriber
// channel, tagged with the pattern it was destined for.
type DeadLetter struct {
	RoutedEvent

	Pattern string `json:"pattern"`
}

// ChannelStats is the cumulative delivery accounting for one pattern.
type ChannelStats struct {
	Pattern     string `json:"pattern"`
	Subscribers int    `json:"subscribers"`
	Sent        uint64 `json:"sent"`
	Dropped     uint64 `json:"dropped"`
	LastError   string `json:"last_error,omitempty"`
}

// subjectChannel is the router-owned registration for one pattern.
// Delivery counters are atomic because routing mutates them under the
// registry read lock, which concurrent Route calls share.
type subjectChannel struct {
	pattern     string
	ch          chan RoutedEvent
	subscribers int
	sent        atomic.Uint64
	dropped     atomic.Uint64

	errMu     sync.Mutex
	lastError string
}

func (sc *subjectChannel) setLastError(msg string) {
	sc.errMu.Lock()
	sc.lastError = msg
	sc.errMu.Unlock()
}

func (sc *subjectChannel) getLastError() string {
	sc.errMu.Lock()
	defer sc.errMu.Unlock()

	return sc.lastError
}

// Router owns the pattern registry and the sequence tracker. Safe for use
// from any number of goroutines; registration takes the write lock, routing
// takes the read lock.
type Router struct {
	mu       sync.RWMutex
	channels map[string]*subjectChannel

	tracker         *sequence.Tracker
	logger          *slog.Logger
	defaultCapacity int

	// deadLetter, when non-nil, receives deliveries dropped from full
	// subscriber channels. Itself bounded and fire-and-forget.
	deadLetter *deadLetterChannel
}

type deadLetterChannel struct {
	ch      chan DeadLetter
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Option configures a Router.
type Option func(*Router)

// WithDeadLetter enables the dead-letter channel with the given capacity.
func WithDeadLetter(capacity int) Option {
	return func(r *Router) {
		r.deadLetter = &deadLetterChannel{
			ch: make(chan DeadLetter, capacity),
		}
	}
}

// WithDefaultCapacity overrides the capacity used by Register and by
// RegisterCap when called with a non-positive capacity.
func WithDefaultCapacity(capacity int) Option {
	return func(r *Router) {
		if capacity > 0 {
			r.defaultCapacity = capacity
		}
	}
}

func NewRouter(logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		channels:        make(map[string]*subjectChannel),
		tracker:         sequence.NewTracker(),
		logger:          logger.With("module", "router"),
		defaultCapacity: DefaultChannelCapacity,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register subscribes to a subject pattern with the router's default
// capacity. Registering an existing pattern returns a receiver on the same
// underlying channel (fan-out to a consumer group, not fan-in).
func (r *Router) Register(pattern string) (<-chan RoutedEvent, error) {
	return r.RegisterCap(pattern, 0)
}

// RegisterCap subscribes with an explicit channel capacity; non-positive
// falls back to the router default. The capacity of an already-registered
// pattern is not changed.
func (r *Router) RegisterCap(pattern string, capacity int) (<-chan RoutedEvent, error) {
	if err := subject.ValidatePattern(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if capacity <= 0 {
		capacity = r.defaultCapacity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sc, exists := r.channels[pattern]
	if !exists {
		sc = &subjectChannel{
			pattern: pattern,
			ch:      make(chan RoutedEvent, capacity),
		}
		r.channels[pattern] = sc
	}

	sc.subscribers++

	r.logger.Debug("registered subject pattern",
		"pattern", pattern, "subscribers", sc.subscribers)

	return sc.ch, nil
}

// Unregister drops one subscription from a pattern. The channel is removed
// and closed when the last subscriber leaves.
func (r *Router) Unregister(pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sc, exists := r.channels[pattern]
	if !exists {
		return fmt.Errorf("pattern not registered: %s", pattern)
	}

	sc.subscribers--
	if sc.subscribers <= 0 {
		delete(r.channels, pattern)
		close(sc.ch)
	}

	return nil
}

// Route derives the event's subject, stamps sequence numbers, and delivers
// a RoutedEvent to every matching pattern without blocking. It returns the
// patterns that received the event. No matching subscribers is not an
// error; a full channel increments the dropped count (and feeds the
// dead-letter channel when configured) without failing the call.
func (r *Router) Route(ctx context.Context, event events.Event) ([]string, error) {
	subj, err := subject.ForEvent(event)
	if err != nil {
		return nil, err
	}

	global, aggregate, err := r.tracker.Next(event.GetWorkflowID())
	if err != nil {
		return nil, fmt.Errorf("failed to assign sequence numbers: %w", err)
	}

	routed := RoutedEvent{
		Event:             event,
		Subject:           subj,
		GlobalSequence:    global,
		AggregateSequence: aggregate,
		RoutedAt:          time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := make([]string, 0, len(r.channels))

	for pattern, sc := range r.channels {
		if !subject.Matches(subj, pattern) {
			continue
		}

		select {
		case sc.ch <- routed:
			sc.sent.Add(1)

			delivered = append(delivered, pattern)
		default:
			sc.dropped.Add(1)
			sc.setLastError(fmt.Sprintf("channel full routing %s", subj))

			r.logger.Warn("dropped event delivery",
				"pattern", pattern,
				"subject", subj,
				"global_sequence", global,
				"capacity", cap(sc.ch))

			r.sendDeadLetter(routed, pattern)
		}
	}

	if len(delivered) == 0 {
		r.logger.Debug("no subscribers for subject", "subject", subj)
	}

	return delivered, nil
}

// sendDeadLetter forwards a dropped delivery, recording the pattern it was
// meant for. Caller holds at least the read lock.
func (r *Router) sendDeadLetter(routed RoutedEvent, pattern string) {
	if r.deadLetter == nil {
		return
	}

	routed.RetryCount++

	select {
	case r.deadLetter.ch <- DeadLetter{RoutedEvent: routed, Pattern: pattern}:
		r.deadLetter.sent.Add(1)
	default:
		r.deadLetter.dropped.Add(1)
	}
}

// DeadLetters returns the dead-letter receiver, or nil when not configured.
func (r *Router) DeadLetters() <-chan DeadLetter {
	if r.deadLetter == nil {
		return nil
	}

	return r.deadLetter.ch
}

// Stats returns a point-in-time snapshot of per-pattern delivery counters.
func (r *Router) Stats() map[string]ChannelStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]ChannelStats, len(r.channels))
	for pattern, sc := range r.channels {
		stats[pattern] = ChannelStats{
			Pattern:     pattern,
			Subscribers: sc.subscribers,
			Sent:        sc.sent.Load(),
			Dropped:     sc.dropped.Load(),
			LastError:   sc.getLastError(),
		}
	}

	return stats
}
