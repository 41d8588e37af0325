package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/commands"
	"github.com/flowmesh/flowmesh/pkg/eventstore/memory"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/router"
	"github.com/flowmesh/flowmesh/pkg/services"
)

// startTimedWorkflow builds and starts a workflow whose step A carries the
// given timeout and retry policy, returning its id.
func startTimedWorkflow(t *testing.T, svc *services.WorkflowService, timeout time.Duration, retry *models.RetryPolicy) string {
	t.Helper()

	ctx := context.Background()
	workflowID := uuid.New().String()

	run := func(cmd commands.Command) {
		_, err := svc.Execute(ctx, cmd)
		require.NoError(t, err)
	}

	run(commands.CreateWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.CreateWorkflowCommand, workflowID),
		Name:        "timed workflow",
		Description: "sweeper fixture",
	})
	run(commands.AddStep{
		BaseCommand: commands.NewBaseCommand(commands.AddStepCommand, workflowID),
		Step: models.StepDefinition{
			ID:      "A",
			Name:    "slow call",
			Type:    models.StepTypeServiceTask,
			Timeout: &timeout,
			Retry:   retry,
		},
	})
	run(commands.AddStep{
		BaseCommand: commands.NewBaseCommand(commands.AddStepCommand, workflowID),
		Step:        models.StepDefinition{ID: "B", Name: "wrap up", Type: models.StepTypeUserTask},
	})
	run(commands.ConnectSteps{
		BaseCommand: commands.NewBaseCommand(commands.ConnectStepsCommand, workflowID),
		FromStep:    "A",
		ToStep:      "B",
	})
	run(commands.SetStartStep{
		BaseCommand: commands.NewBaseCommand(commands.SetStartStepCommand, workflowID),
		StepID:      "A",
	})
	run(commands.MarkEndStep{
		BaseCommand: commands.NewBaseCommand(commands.MarkEndStepCommand, workflowID),
		StepID:      "B",
	})
	run(commands.ValidateWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.ValidateWorkflowCommand, workflowID),
	})
	run(commands.StartWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.StartWorkflowCommand, workflowID),
	})

	return workflowID
}

func newSweeperTestService() *services.WorkflowService {
	return services.NewWorkflowService(memory.NewStore(), router.NewRouter(slog.Default()), slog.Default())
}

func TestNewSweeper_InvalidSpec(t *testing.T) {
	_, err := NewSweeper(newSweeperTestService(), slog.Default(), "every now and then")
	assert.Error(t, err)
}

func TestNewSweeper_EmptySpecDefaults(t *testing.T) {
	sweeper, err := NewSweeper(newSweeperTestService(), slog.Default(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepSpec, sweeper.spec)
}

func TestSweeper_FailsTimedOutStep(t *testing.T) {
	svc := newSweeperTestService()
	workflowID := startTimedWorkflow(t, svc, time.Minute, nil)

	sweeper, err := NewSweeper(svc, slog.Default(), DefaultSweepSpec)
	require.NoError(t, err)
	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	sweeper.Sweep(context.Background())

	state, err := svc.Load(context.Background(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Contains(t, state.FailureReason, "timed out")
	assert.Equal(t, "A", state.FailedAtStep)
	assert.Empty(t, svc.RunningWorkflows())
}

func TestSweeper_LeavesStepWithinDeadline(t *testing.T) {
	svc := newSweeperTestService()
	workflowID := startTimedWorkflow(t, svc, time.Hour, nil)

	sweeper, err := NewSweeper(svc, slog.Default(), DefaultSweepSpec)
	require.NoError(t, err)

	sweeper.Sweep(context.Background())

	state, err := svc.Load(context.Background(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRunning, state.Status)
}

func TestSweeper_IgnoresStepsWithoutTimeout(t *testing.T) {
	svc := newSweeperTestService()
	ctx := context.Background()
	workflowID := startTimedWorkflow(t, svc, time.Minute, nil)

	// Advance to B, which carries no timeout.
	next := "B"
	_, err := svc.Execute(ctx, commands.CompleteStep{
		BaseCommand: commands.NewBaseCommand(commands.CompleteStepCommand, workflowID),
		StepID:      "A",
		NextStep:    &next,
	})
	require.NoError(t, err)

	sweeper, err := NewSweeper(svc, slog.Default(), DefaultSweepSpec)
	require.NoError(t, err)
	sweeper.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	sweeper.Sweep(ctx)

	state, err := svc.Load(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRunning, state.Status)
}

func TestSweeper_HonorsRetryBudget(t *testing.T) {
	svc := newSweeperTestService()
	workflowID := startTimedWorkflow(t, svc, time.Minute, &models.RetryPolicy{MaxAttempts: 3})

	sweeper, err := NewSweeper(svc, slog.Default(), DefaultSweepSpec)
	require.NoError(t, err)
	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ctx := context.Background()

	// The first two misses consume the retry budget without failing.
	for i := 0; i < 2; i++ {
		sweeper.Sweep(ctx)

		state, err := svc.Load(ctx, workflowID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusRunning, state.Status)
	}

	sweeper.Sweep(ctx)

	state, err := svc.Load(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
}

// A recorded miss defers the next attempt by the step's backoff instead of
// letting back-to-back sweeps drain the retry budget.
func TestSweeper_BackoffSpacesRetries(t *testing.T) {
	svc := newSweeperTestService()
	workflowID := startTimedWorkflow(t, svc, time.Minute, &models.RetryPolicy{
		MaxAttempts: 2,
		Backoff:     time.Hour,
	})

	sweeper, err := NewSweeper(svc, slog.Default(), DefaultSweepSpec)
	require.NoError(t, err)
	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ctx := context.Background()

	sweeper.Sweep(ctx)

	state, err := svc.Load(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRunning, state.Status)

	// Still inside the backoff window: the second sweep must not count a miss.
	sweeper.Sweep(ctx)

	state, err = svc.Load(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRunning, state.Status)

	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	sweeper.Sweep(ctx)

	state, err = svc.Load(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper, err := NewSweeper(newSweeperTestService(), slog.Default(), "@every 1h")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Start(ctx), "second start is a no-op")

	sweeper.Stop()
	sweeper.Stop()
}
