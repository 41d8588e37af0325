// Package commands defines the command types accepted by the workflow aggregate.
package commands

import (
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/google/uuid"
)

type CommandType string

const (
	CreateWorkflowCommand   CommandType = "workflow.create"
	AddStepCommand          CommandType = "workflow.add_step"
	ConnectStepsCommand     CommandType = "workflow.connect_steps"
	SetStartStepCommand     CommandType = "workflow.set_start_step"
	MarkEndStepCommand      CommandType = "workflow.mark_end_step"
	ValidateWorkflowCommand CommandType = "workflow.validate"
	StartWorkflowCommand    CommandType = "workflow.start"
	CompleteStepCommand     CommandType = "workflow.complete_step"
	PauseWorkflowCommand    CommandType = "workflow.pause"
	ResumeWorkflowCommand   CommandType = "workflow.resume"
	FailWorkflowCommand     CommandType = "workflow.fail"
)

// Command is implemented by every command variant.
type Command interface {
	GetType() CommandType
	GetWorkflowID() string
	GetBase() BaseCommand
}

// BaseCommand is the envelope shared by all commands. CorrelationID is
// propagated onto every event the command produces; callers that omit it
// get the command id as correlation root.
type BaseCommand struct {
	ID            string         `json:"id"             validate:"required,uuid"`
	Type          CommandType    `json:"type"           validate:"required"`
	Timestamp     time.Time      `json:"timestamp"`
	WorkflowID    string         `json:"workflow_id"    validate:"required,uuid"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (b BaseCommand) GetWorkflowID() string { return b.WorkflowID }

func (b BaseCommand) GetBase() BaseCommand { return b }

// Correlation returns the correlation id, defaulting to the command id.
func (b BaseCommand) Correlation() string {
	if b.CorrelationID != "" {
		return b.CorrelationID
	}

	return b.ID
}

func NewBaseCommand(commandType CommandType, workflowID string) BaseCommand {
	return BaseCommand{
		ID:         uuid.New().String(),
		Type:       commandType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type CreateWorkflow struct {
	BaseCommand

	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description" validate:"required"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

func (c CreateWorkflow) GetType() CommandType {
	return CreateWorkflowCommand
}

type AddStep struct {
	BaseCommand

	Step models.StepDefinition `json:"step" validate:"required"`
}

func (c AddStep) GetType() CommandType {
	return AddStepCommand
}

type ConnectSteps struct {
	BaseCommand

	FromStep string `json:"from_step" validate:"required"`
	ToStep   string `json:"to_step"   validate:"required"`
}

func (c ConnectSteps) GetType() CommandType {
	return ConnectStepsCommand
}

type SetStartStep struct {
	BaseCommand

	StepID string `json:"step_id" validate:"required"`
}

func (c SetStartStep) GetType() CommandType {
	return SetStartStepCommand
}

type MarkEndStep struct {
	BaseCommand

	StepID string `json:"step_id" validate:"required"`
}

func (c MarkEndStep) GetType() CommandType {
	return MarkEndStepCommand
}

type ValidateWorkflow struct {
	BaseCommand
}

func (c ValidateWorkflow) GetType() CommandType {
	return ValidateWorkflowCommand
}

type StartWorkflow struct {
	BaseCommand

	Inputs map[string]any `json:"inputs,omitempty"`
}

func (c StartWorkflow) GetType() CommandType {
	return StartWorkflowCommand
}

type CompleteStep struct {
	BaseCommand

	StepID   string         `json:"step_id" validate:"required"`
	NextStep *string        `json:"next_step,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
}

func (c CompleteStep) GetType() CommandType {
	return CompleteStepCommand
}

type PauseWorkflow struct {
	BaseCommand

	Reason string `json:"reason,omitempty"`
}

func (c PauseWorkflow) GetType() CommandType {
	return PauseWorkflowCommand
}

type ResumeWorkflow struct {
	BaseCommand
}

func (c ResumeWorkflow) GetType() CommandType {
	return ResumeWorkflowCommand
}

type FailWorkflow struct {
	BaseCommand

	Reason string `json:"reason" validate:"required"`
}

func (c FailWorkflow) GetType() CommandType {
	return FailWorkflowCommand
}
