// Package workflow implements the event-sourced workflow aggregate: command
// validation against the transition table, event emission, and event
// application for both live progression and replay.
package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the domain error taxonomy. Validation errors mean
// the command payload or graph shape is wrong; invalid-state errors mean the
// transition table has no row for the (state, command) pair; duplicate-entity
// errors mean a child id collision. All are rejected without mutation.
var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidState    = errors.New("invalid state for command")
	ErrDuplicateEntity = errors.New("duplicate entity")

	ErrWorkflowExists   = errors.New("workflow already created")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrStepNotFound     = errors.New("step not found")
	ErrNoSteps          = errors.New("workflow has no steps")
	ErrNoStartStep      = errors.New("workflow has no start step")
	ErrNoEndSteps       = errors.New("workflow has no end steps")
	ErrNotCurrentStep   = errors.New("step is not the current step")
	ErrNextStepRequired = errors.New("next step required for non-terminal step")
	ErrStepRevisited    = errors.New("next step already completed in this run")
	ErrUnknownStepType  = errors.New("unknown step type")
	ErrSelfConnection   = errors.New("step cannot connect to itself")
	ErrInputsRejected   = errors.New("start inputs rejected by schema")
)

// DomainError wraps a sentinel with the operation and aggregate context.
type DomainError struct {
	Op         string
	WorkflowID string
	Message    string
	Err        error
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a command-validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrNoSteps) ||
		errors.Is(err, ErrNoStartStep) ||
		errors.Is(err, ErrNoEndSteps) ||
		errors.Is(err, ErrNotCurrentStep) ||
		errors.Is(err, ErrNextStepRequired) ||
		errors.Is(err, ErrStepRevisited) ||
		errors.Is(err, ErrUnknownStepType) ||
		errors.Is(err, ErrSelfConnection) ||
		errors.Is(err, ErrInputsRejected)
}

// IsInvalidState reports whether err is a transition-table rejection.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrWorkflowExists)
}

// IsDuplicateEntity reports whether err is a child-entity id collision.
func IsDuplicateEntity(err error) bool {
	return errors.Is(err, ErrDuplicateEntity)
}

// IsNotFound reports whether err means the aggregate does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func validationError(op, workflowID, message string, err error) *DomainError {
	if err == nil {
		err = ErrValidation
	}

	return &DomainError{Op: op, WorkflowID: workflowID, Message: message, Err: err}
}

func stateError(op, workflowID, message string) *DomainError {
	return &DomainError{Op: op, WorkflowID: workflowID, Message: message, Err: ErrInvalidState}
}
