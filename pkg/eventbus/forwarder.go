// Package eventbus bridges the in-process subject router onto a watermill
// publisher, so routed events can leave the process over gochannel (dev) or
// Kafka without the router knowing about transports.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowmesh/flowmesh/pkg/router"
)

// Message metadata keys set on every forwarded message.
const (
	SubjectMetadataKey           = "subject"
	EventTypeMetadataKey         = "event_type"
	WorkflowIDMetadataKey        = "workflow_id"
	GlobalSequenceMetadataKey    = "global_sequence"
	AggregateSequenceMetadataKey = "aggregate_sequence"
)

// DefaultTopic receives forwarded events unless overridden.
const DefaultTopic = "flowmesh.events"

const defaultPollInterval = 50 * time.Millisecond

// Forwarder consumes one subject pattern from the router and republishes
// every routed event onto a watermill topic.
type Forwarder struct {
	consumer  *router.Consumer
	publisher message.Publisher
	topic     string
	interval  time.Duration
	logger    *slog.Logger
}

func NewForwarder(r *router.Router, publisher message.Publisher, pattern, topic string, logger *slog.Logger) (*Forwarder, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	consumer, err := router.NewConsumer(r, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe forwarder: %w", err)
	}

	return &Forwarder{
		consumer:  consumer,
		publisher: publisher,
		topic:     topic,
		interval:  defaultPollInterval,
		logger:    logger.With("module", "event_forwarder", "topic", topic),
	}, nil
}

// Run polls the consumer until ctx is done. The consumer is unregistered on
// exit; buffered events not yet forwarded are dropped, matching the
// router's at-most-once delivery contract.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	defer f.consumer.Close()

	for {
		select {
		case <-ctx.Done():
			f.Flush()

			return ctx.Err()
		case <-ticker.C:
			f.Flush()
		}
	}
}

// Flush forwards everything currently pending. Exposed for tests and for
// callers driving their own loop.
func (f *Forwarder) Flush() {
	for _, routed := range f.consumer.Poll() {
		if err := f.publish(routed); err != nil {
			f.logger.Warn("failed to forward event",
				"subject", routed.Subject,
				"global_sequence", routed.GlobalSequence,
				"error", err)
		}
	}
}

func (f *Forwarder) publish(routed router.RoutedEvent) error {
	payload, err := json.Marshal(routed)
	if err != nil {
		return fmt.Errorf("failed to encode routed event: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(SubjectMetadataKey, routed.Subject)
	msg.Metadata.Set(EventTypeMetadataKey, string(routed.Event.GetType()))
	msg.Metadata.Set(WorkflowIDMetadataKey, routed.Event.GetWorkflowID())
	msg.Metadata.Set(GlobalSequenceMetadataKey, strconv.FormatUint(routed.GlobalSequence, 10))
	msg.Metadata.Set(AggregateSequenceMetadataKey, strconv.FormatUint(routed.AggregateSequence, 10))

	return f.publisher.Publish(f.topic, msg)
}
