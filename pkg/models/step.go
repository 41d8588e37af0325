package models

import "time"

// StepType is the closed set of step kinds a workflow may contain.
type StepType string

const (
	StepTypeUserTask        StepType = "user_task"
	StepTypeServiceTask     StepType = "service_task"
	StepTypeDecision        StepType = "decision"
	StepTypeParallelGateway StepType = "parallel_gateway"
	StepTypeEventWait       StepType = "event_wait"
	StepTypeScript          StepType = "script"
)

// ValidStepType reports whether t is one of the known step kinds.
func ValidStepType(t StepType) bool {
	switch t {
	case StepTypeUserTask, StepTypeServiceTask, StepTypeDecision,
		StepTypeParallelGateway, StepTypeEventWait, StepTypeScript:
		return true
	}

	return false
}

// RetryPolicy configures automatic retries for a step that times out or fails.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" validate:"required,min=1"`
	Backoff     time.Duration `json:"backoff"`
}

// StepDefinition is a child entity of the workflow aggregate. Steps are
// added, never mutated in place; re-adding an existing id is a duplicate.
type StepDefinition struct {
	ID      string         `json:"id"      validate:"required"`
	Name    string         `json:"name"    validate:"required,min=1"`
	Type    StepType       `json:"type"    validate:"required"`
	Config  map[string]any `json:"config,omitempty"`
	Timeout *time.Duration `json:"timeout,omitempty"`
	Retry   *RetryPolicy   `json:"retry,omitempty"`
}

// Connection is a directed edge between two steps.
type Connection struct {
	ID       string `json:"id"        validate:"required"`
	FromStep string `json:"from_step" validate:"required"`
	ToStep   string `json:"to_step"   validate:"required"`
}
