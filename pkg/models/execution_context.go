package models

import "time"

// ExecutionContext is the transient execution state of one workflow run.
// It exists only while the aggregate is running or paused and is discarded
// on reaching a terminal status.
type ExecutionContext struct {
	InstanceID     string         `json:"instance_id" validate:"required,uuid"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	StepOutputs    map[string]any `json:"step_outputs,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CurrentStep    string         `json:"current_step"`
	CompletedSteps []string       `json:"completed_steps,omitempty"`

	// StepEnteredAt tracks when the current step became current, used by
	// the timeout sweeper.
	StepEnteredAt time.Time `json:"step_entered_at"`
}

// HasCompleted reports whether the given step id already completed in this run.
func (c *ExecutionContext) HasCompleted(stepID string) bool {
	for _, id := range c.CompletedSteps {
		if id == stepID {
			return true
		}
	}

	return false
}
