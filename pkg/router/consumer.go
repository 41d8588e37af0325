package router

import (
	"fmt"
	"sort"
)

// Consumer holds receivers for one or more registered patterns and
// reassembles a single globally-ordered view across them. Channels deliver
// independently, so cross-pattern order is reconstructed here by sorting on
// the global sequence number.
type Consumer struct {
	router    *Router
	patterns  []string
	receivers []<-chan RoutedEvent
}

// NewConsumer registers every pattern on the router and returns a consumer
// owning the resulting receivers. Registration is all-or-nothing.
func NewConsumer(r *Router, patterns ...string) (*Consumer, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("consumer requires at least one pattern")
	}

	c := &Consumer{router: r}

	for _, pattern := range patterns {
		ch, err := r.Register(pattern)
		if err != nil {
			c.Close()

			return nil, fmt.Errorf("failed to register %q: %w", pattern, err)
		}

		c.patterns = append(c.patterns, pattern)
		c.receivers = append(c.receivers, ch)
	}

	return c, nil
}

// Poll drains every receiver without blocking and returns the combined
// batch sorted by global sequence ascending. An empty slice means nothing
// was pending.
func (c *Consumer) Poll() []RoutedEvent {
	var batch []RoutedEvent

	for _, ch := range c.receivers {
		for {
			select {
			case routed, ok := <-ch:
				if !ok {
					break
				}

				batch = append(batch, routed)

				continue
			default:
			}

			break
		}
	}

	sort.Slice(batch, func(i, j int) bool {
		return batch[i].GlobalSequence < batch[j].GlobalSequence
	})

	return batch
}

// Patterns returns the patterns this consumer subscribed to.
func (c *Consumer) Patterns() []string {
	out := make([]string, len(c.patterns))
	copy(out, c.patterns)

	return out
}

// Close unregisters every pattern. The router closes a channel once its
// last subscriber leaves; events already buffered are lost, which is the
// documented at-most-once contract.
func (c *Consumer) Close() {
	for _, pattern := range c.patterns {
		if err := c.router.Unregister(pattern); err != nil {
			c.router.logger.Warn("failed to unregister pattern",
				"pattern", pattern, "error", err)
		}
	}

	c.patterns = nil
	c.receivers = nil
}
