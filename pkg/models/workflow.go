// Package models defines the core domain model for event-sourced workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow aggregate.
type WorkflowStatus string

const (
	WorkflowStatusDesigned  WorkflowStatus = "designed"  // Editable, steps and connections may be added
	WorkflowStatusReady     WorkflowStatus = "ready"     // Validated, executable
	WorkflowStatusRunning   WorkflowStatus = "running"   // Executing, carries an ExecutionContext
	WorkflowStatusPaused    WorkflowStatus = "paused"    // Execution suspended, resumable
	WorkflowStatusFailed    WorkflowStatus = "failed"    // Terminal
	WorkflowStatusCompleted WorkflowStatus = "completed" // Terminal
)

// IsTerminal reports whether no further commands are accepted in this status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusFailed || s == WorkflowStatusCompleted
}

// Workflow is the aggregate state. Exactly one status is current at any
// time; fields below the status line are only meaningful in the statuses
// noted on them. It is mutated exclusively by applying domain events.
type Workflow struct {
	ID          string         `json:"id"          validate:"required,uuid"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description" validate:"required"`
	Status      WorkflowStatus `json:"status"      validate:"required"`

	Steps       []*StepDefinition `json:"steps"`
	Connections []*Connection     `json:"connections"`
	StartStep   string            `json:"start_step,omitempty"`
	EndSteps    []string          `json:"end_steps,omitempty"`

	// InputSchema optionally holds a JSON schema the start inputs must
	// satisfy before execution begins.
	InputSchema map[string]any `json:"input_schema,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// ValidatedAt is set while in ready or any later status.
	ValidatedAt *time.Time `json:"validated_at,omitempty"`

	// Execution is present only in running and paused statuses.
	Execution *ExecutionContext `json:"execution,omitempty"`

	// PauseReason and PausedAt are set only in paused status.
	PauseReason string     `json:"pause_reason,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`

	// FailureReason and FailedAtStep are set only in failed status.
	FailureReason string `json:"failure_reason,omitempty"`
	FailedAtStep  string `json:"failed_at_step,omitempty"`

	// CompletedAt and Outputs are set only in completed status.
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
}

// StepByID returns the step definition with the given id, or nil.
func (w *Workflow) StepByID(id string) *StepDefinition {
	for _, step := range w.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// HasStep reports whether a step with the given id exists.
func (w *Workflow) HasStep(id string) bool {
	return w.StepByID(id) != nil
}

// IsEndStep reports whether the given step id is in the configured end set.
func (w *Workflow) IsEndStep(id string) bool {
	for _, end := range w.EndSteps {
		if end == id {
			return true
		}
	}

	return false
}
