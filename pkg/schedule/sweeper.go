// Package schedule provides the cron-driven step-timeout sweeper. Running
// workflows whose current step carries a timeout are failed once the step
// deadline (plus any configured retries) has passed.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowmesh/flowmesh/pkg/commands"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/services"
)

// DefaultSweepSpec runs the sweep every 30 seconds.
const DefaultSweepSpec = "@every 30s"

type Sweeper struct {
	service *services.WorkflowService
	logger  *slog.Logger
	cron    *cron.Cron
	spec    string

	mu      sync.Mutex
	entry   cron.EntryID
	started bool

	// attempts counts deadline misses per instance, sweeper-local so a
	// step with a retry policy gets its full attempt budget before the
	// workflow is failed.
	attempts map[string]int

	now func() time.Time
}

func NewSweeper(service *services.WorkflowService, logger *slog.Logger, spec string) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	return &Sweeper{
		service:  service,
		logger:   logger.With("module", "timeout_sweeper"),
		cron:     cron.New(),
		spec:     spec,
		attempts: make(map[string]int),
		now:      time.Now,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	entry, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.entry = entry
	s.started = true
	s.cron.Start()

	s.logger.Info("timeout sweeper started", "spec", s.spec)

	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cron.Remove(s.entry)
	s.cron.Stop()
	s.started = false

	s.logger.Info("timeout sweeper stopped")
}

// Sweep checks every running workflow once. Exposed so tests and operators
// can force a pass outside the cron cadence.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, workflowID := range s.service.RunningWorkflows() {
		if err := s.check(ctx, workflowID); err != nil {
			s.logger.Warn("sweep check failed",
				"workflow_id", workflowID, "error", err)
		}
	}
}

func (s *Sweeper) check(ctx context.Context, workflowID string) error {
	state, err := s.service.Load(ctx, workflowID)
	if err != nil {
		return err
	}

	if state.Status != models.WorkflowStatusRunning || state.Execution == nil {
		return nil
	}

	step := state.StepByID(state.Execution.CurrentStep)
	if step == nil || step.Timeout == nil {
		return nil
	}

	key := state.Execution.InstanceID + ":" + step.ID

	maxAttempts := 1

	var backoff time.Duration

	if step.Retry != nil {
		maxAttempts = step.Retry.MaxAttempts
		backoff = step.Retry.Backoff
	}

	s.mu.Lock()
	prior := s.attempts[key]
	s.mu.Unlock()

	// Each recorded miss pushes the deadline out by the step's backoff, so
	// retries are spaced instead of burning the whole budget in one sweep.
	deadline := state.Execution.StepEnteredAt.Add(*step.Timeout + time.Duration(prior)*backoff)
	if s.now().Before(deadline) {
		return nil
	}

	s.mu.Lock()
	s.attempts[key]++
	misses := s.attempts[key]
	s.mu.Unlock()

	if misses < maxAttempts {
		s.logger.Info("step past deadline, retry budget remaining",
			"workflow_id", workflowID,
			"step_id", step.ID,
			"attempt", misses,
			"max_attempts", maxAttempts)

		return nil
	}

	s.mu.Lock()
	delete(s.attempts, key)
	s.mu.Unlock()

	cmd := commands.FailWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.FailWorkflowCommand, workflowID),
		Reason:      fmt.Sprintf("step %s timed out after %s", step.ID, *step.Timeout),
	}

	if _, err := s.service.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("failed to fail timed-out workflow: %w", err)
	}

	s.logger.Warn("workflow failed on step timeout",
		"workflow_id", workflowID,
		"step_id", step.ID,
		"timeout", *step.Timeout)

	return nil
}
