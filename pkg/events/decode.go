package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the stored wire form of a domain event: the type tag plus the
// JSON-encoded variant. Stores and transports round-trip events through it.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap encodes a domain event into its storage envelope.
func Wrap(event Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	return Envelope{Type: event.GetType(), Payload: payload}, nil
}

// Unwrap decodes a storage envelope back into its concrete event variant.
// The switch is exhaustive over all event types; an unknown tag is an error.
func Unwrap(env Envelope) (Event, error) {
	var event Event

	switch env.Type {
	case WorkflowCreatedEvent:
		event = &WorkflowCreated{}
	case StepAddedEvent:
		event = &StepAdded{}
	case StepsConnectedEvent:
		event = &StepsConnected{}
	case StartStepSetEvent:
		event = &StartStepSet{}
	case EndStepMarkedEvent:
		event = &EndStepMarked{}
	case WorkflowValidatedEvent:
		event = &WorkflowValidated{}
	case WorkflowStartedEvent:
		event = &WorkflowStarted{}
	case StepCompletedEvent:
		event = &StepCompleted{}
	case WorkflowPausedEvent:
		event = &WorkflowPaused{}
	case WorkflowResumedEvent:
		event = &WorkflowResumed{}
	case WorkflowFailedEvent:
		event = &WorkflowFailed{}
	case WorkflowCompletedEvent:
		event = &WorkflowCompleted{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	if err := json.Unmarshal(env.Payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", env.Type, err)
	}

	return deref(event), nil
}

// deref returns the value form so decoded events compare equal to emitted ones.
func deref(event Event) Event {
	switch e := event.(type) {
	case *WorkflowCreated:
		return *e
	case *StepAdded:
		return *e
	case *StepsConnected:
		return *e
	case *StartStepSet:
		return *e
	case *EndStepMarked:
		return *e
	case *WorkflowValidated:
		return *e
	case *WorkflowStarted:
		return *e
	case *StepCompleted:
		return *e
	case *WorkflowPaused:
		return *e
	case *WorkflowResumed:
		return *e
	case *WorkflowFailed:
		return *e
	case *WorkflowCompleted:
		return *e
	default:
		return event
	}
}
