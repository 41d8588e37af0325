// Package sequence assigns monotonic sequence numbers to routed events.
package sequence

import (
	"errors"
	"math"
	"sync"
)

// ErrSequenceExhausted is returned once a counter has issued every
// representable value and the next assignment would wrap. In practice
// unreachable; failing loudly beats silent wraparound.
var ErrSequenceExhausted = errors.New("sequence counter exhausted")

// Tracker hands out a process-wide global sequence and a per-aggregate
// sequence on every call. Counters start at zero; the first assigned value
// is 1. Per-aggregate counters are created lazily and are independent of
// each other.
type Tracker struct {
	globalMu sync.Mutex
	global   uint64

	aggregateMu sync.Mutex
	aggregates  map[string]uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		aggregates: make(map[string]uint64),
	}
}

// Next assigns the next global and per-aggregate sequence numbers for the
// given aggregate id.
func (t *Tracker) Next(aggregateID string) (global, aggregate uint64, err error) {
	t.globalMu.Lock()
	if t.global == math.MaxUint64 {
		t.globalMu.Unlock()

		return 0, 0, ErrSequenceExhausted
	}

	t.global++
	global = t.global
	t.globalMu.Unlock()

	t.aggregateMu.Lock()
	current := t.aggregates[aggregateID]
	if current == math.MaxUint64 {
		t.aggregateMu.Unlock()

		return 0, 0, ErrSequenceExhausted
	}

	t.aggregates[aggregateID] = current + 1
	aggregate = current + 1
	t.aggregateMu.Unlock()

	return global, aggregate, nil
}

// Current returns the last assigned global sequence number.
func (t *Tracker) Current() uint64 {
	t.globalMu.Lock()
	defer t.globalMu.Unlock()

	return t.global
}

// CurrentFor returns the last assigned sequence for one aggregate (zero if
// none yet).
func (t *Tracker) CurrentFor(aggregateID string) uint64 {
	t.aggregateMu.Lock()
	defer t.aggregateMu.Unlock()

	return t.aggregates[aggregateID]
}
