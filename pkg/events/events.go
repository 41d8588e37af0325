// Package events defines the domain event types emitted by the workflow aggregate.
package events

import (
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const (
	// Design-time events.
	WorkflowCreatedEvent   EventType = "workflow.created"
	StepAddedEvent         EventType = "workflow.step_added"
	StepsConnectedEvent    EventType = "workflow.steps_connected"
	StartStepSetEvent      EventType = "workflow.start_step_set"
	EndStepMarkedEvent     EventType = "workflow.end_step_marked"
	WorkflowValidatedEvent EventType = "workflow.validated"

	// Execution lifecycle events.
	WorkflowStartedEvent   EventType = "workflow.started"
	StepCompletedEvent     EventType = "workflow.step_completed"
	WorkflowPausedEvent    EventType = "workflow.paused"
	WorkflowResumedEvent   EventType = "workflow.resumed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowCompletedEvent EventType = "workflow.completed"
)

// Event is implemented by every domain event variant.
type Event interface {
	GetType() EventType
	GetWorkflowID() string
	GetBase() BaseEvent
}

// BaseEvent is the envelope shared by all domain events. CorrelationID ties
// an event back to the command chain that produced it; CausationID is the
// id of the command that directly caused it.
type BaseEvent struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	WorkflowID    string         `json:"workflow_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetWorkflowID() string { return b.WorkflowID }

func (b BaseEvent) GetBase() BaseEvent { return b }

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type WorkflowCreated struct {
	BaseEvent

	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type StepAdded struct {
	BaseEvent

	Step models.StepDefinition `json:"step"`
}

func (e StepAdded) GetType() EventType {
	return StepAddedEvent
}

type StepsConnected struct {
	BaseEvent

	ConnectionID string `json:"connection_id"`
	FromStep     string `json:"from_step"`
	ToStep       string `json:"to_step"`
}

func (e StepsConnected) GetType() EventType {
	return StepsConnectedEvent
}

type StartStepSet struct {
	BaseEvent

	StepID string `json:"step_id"`
}

func (e StartStepSet) GetType() EventType {
	return StartStepSetEvent
}

type EndStepMarked struct {
	BaseEvent

	StepID string `json:"step_id"`
}

func (e EndStepMarked) GetType() EventType {
	return EndStepMarkedEvent
}

type WorkflowValidated struct {
	BaseEvent

	StepCount       int `json:"step_count"`
	ConnectionCount int `json:"connection_count"`
}

func (e WorkflowValidated) GetType() EventType {
	return WorkflowValidatedEvent
}

type WorkflowStarted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	StartStep  string         `json:"start_step"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type StepCompleted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	StepID     string         `json:"step_id"`
	NextStep   *string        `json:"next_step,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type WorkflowPaused struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason,omitempty"`
}

func (e WorkflowPaused) GetType() EventType {
	return WorkflowPausedEvent
}

type WorkflowResumed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
}

func (e WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

type WorkflowFailed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason"`
	StepID     string `json:"step_id,omitempty"`
}

func (e WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	Outputs    map[string]any `json:"outputs,omitempty"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}
