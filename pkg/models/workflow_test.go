package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowStatus_IsTerminal(t *testing.T) {
	assert.True(t, WorkflowStatusFailed.IsTerminal())
	assert.True(t, WorkflowStatusCompleted.IsTerminal())

	for _, status := range []WorkflowStatus{
		WorkflowStatusDesigned,
		WorkflowStatusReady,
		WorkflowStatusRunning,
		WorkflowStatusPaused,
	} {
		assert.False(t, status.IsTerminal(), "status %s", status)
	}
}

func TestWorkflow_StepLookups(t *testing.T) {
	wf := &Workflow{
		Steps: []*StepDefinition{
			{ID: "A", Name: "pick", Type: StepTypeServiceTask},
			{ID: "B", Name: "ship", Type: StepTypeUserTask},
		},
		EndSteps: []string{"B"},
	}

	assert.True(t, wf.HasStep("A"))
	assert.False(t, wf.HasStep("C"))
	assert.Nil(t, wf.StepByID("C"))
	assert.Equal(t, "ship", wf.StepByID("B").Name)
	assert.True(t, wf.IsEndStep("B"))
	assert.False(t, wf.IsEndStep("A"))
}

func TestExecutionContext_HasCompleted(t *testing.T) {
	exec := &ExecutionContext{CompletedSteps: []string{"A", "B"}}

	assert.True(t, exec.HasCompleted("A"))
	assert.False(t, exec.HasCompleted("C"))
	assert.False(t, (&ExecutionContext{}).HasCompleted("A"))
}

func TestValidStepType(t *testing.T) {
	for _, stepType := range []StepType{
		StepTypeUserTask,
		StepTypeServiceTask,
		StepTypeDecision,
		StepTypeParallelGateway,
		StepTypeEventWait,
		StepTypeScript,
	} {
		assert.True(t, ValidStepType(stepType), "type %s", stepType)
	}

	assert.False(t, ValidStepType("teleport"))
	assert.False(t, ValidStepType(""))
}
