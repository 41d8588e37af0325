package workflow

import (
	"fmt"

	"github.com/flowmesh/flowmesh/pkg/commands"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/google/uuid"
)

// Aggregate is one workflow consistency boundary. State lives in the
// embedded models.Workflow and is mutated only through ApplyEvent, so the
// same type serves live command handling and replay from a stored stream.
type Aggregate struct {
	ID      string
	State   *models.Workflow
	Version uint64
}

// New returns an empty aggregate for the given id. State is nil until a
// WorkflowCreated event is applied.
func New(id string) *Aggregate {
	return &Aggregate{ID: id}
}

// FromHistory rehydrates an aggregate by replaying an ordered event stream.
func FromHistory(id string, history []events.Event) (*Aggregate, error) {
	agg := New(id)
	for _, event := range history {
		if err := agg.ApplyEvent(event); err != nil {
			return nil, fmt.Errorf("replay failed at version %d: %w", agg.Version, err)
		}
	}

	return agg, nil
}

// Exists reports whether the aggregate has been created.
func (a *Aggregate) Exists() bool {
	return a.State != nil
}

// HandleCommand validates cmd against the current state and returns the
// events it produces, in order. All guards are evaluated before any event
// is built; the aggregate is never mutated here. Callers must ApplyEvent
// each returned event, in order, to advance the state.
func (a *Aggregate) HandleCommand(cmd commands.Command) ([]events.Event, error) {
	if cmd.GetWorkflowID() != a.ID {
		return nil, validationError("handle_command", a.ID,
			fmt.Sprintf("command targets workflow %s", cmd.GetWorkflowID()), nil)
	}

	switch c := cmd.(type) {
	case commands.CreateWorkflow:
		return a.handleCreate(c)
	case commands.AddStep:
		return a.handleAddStep(c)
	case commands.ConnectSteps:
		return a.handleConnectSteps(c)
	case commands.SetStartStep:
		return a.handleSetStartStep(c)
	case commands.MarkEndStep:
		return a.handleMarkEndStep(c)
	case commands.ValidateWorkflow:
		return a.handleValidate(c)
	case commands.StartWorkflow:
		return a.handleStart(c)
	case commands.CompleteStep:
		return a.handleCompleteStep(c)
	case commands.PauseWorkflow:
		return a.handlePause(c)
	case commands.ResumeWorkflow:
		return a.handleResume(c)
	case commands.FailWorkflow:
		return a.handleFail(c)
	default:
		return nil, stateError("handle_command", a.ID,
			fmt.Sprintf("unsupported command type %s", cmd.GetType()))
	}
}

func (a *Aggregate) handleCreate(cmd commands.CreateWorkflow) ([]events.Event, error) {
	if a.Exists() {
		return nil, &DomainError{Op: "create", WorkflowID: a.ID, Err: ErrWorkflowExists}
	}

	if len(cmd.Name) < 3 {
		return nil, validationError("create", a.ID, "name must be at least 3 characters", nil)
	}

	if cmd.Description == "" {
		return nil, validationError("create", a.ID, "description is required", nil)
	}

	event := events.WorkflowCreated{
		BaseEvent:   a.newBase(events.WorkflowCreatedEvent, cmd.GetBase()),
		Name:        cmd.Name,
		Description: cmd.Description,
		InputSchema: cmd.InputSchema,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleAddStep(cmd commands.AddStep) ([]events.Event, error) {
	if err := a.requireStatus("add_step", models.WorkflowStatusDesigned); err != nil {
		return nil, err
	}

	if cmd.Step.ID == "" || cmd.Step.Name == "" {
		return nil, validationError("add_step", a.ID, "step id and name are required", nil)
	}

	if !models.ValidStepType(cmd.Step.Type) {
		return nil, validationError("add_step", a.ID,
			fmt.Sprintf("step type %q", cmd.Step.Type), ErrUnknownStepType)
	}

	if a.State.HasStep(cmd.Step.ID) {
		return nil, &DomainError{
			Op:         "add_step",
			WorkflowID: a.ID,
			Message:    fmt.Sprintf("step %s already exists", cmd.Step.ID),
			Err:        ErrDuplicateEntity,
		}
	}

	event := events.StepAdded{
		BaseEvent: a.newBase(events.StepAddedEvent, cmd.GetBase()),
		Step:      cmd.Step,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleConnectSteps(cmd commands.ConnectSteps) ([]events.Event, error) {
	if err := a.requireStatus("connect_steps", models.WorkflowStatusDesigned); err != nil {
		return nil, err
	}

	if cmd.FromStep == cmd.ToStep {
		return nil, validationError("connect_steps", a.ID, cmd.FromStep, ErrSelfConnection)
	}

	for _, id := range []string{cmd.FromStep, cmd.ToStep} {
		if !a.State.HasStep(id) {
			return nil, validationError("connect_steps", a.ID, id, ErrStepNotFound)
		}
	}

	event := events.StepsConnected{
		BaseEvent:    a.newBase(events.StepsConnectedEvent, cmd.GetBase()),
		ConnectionID: uuid.New().String(),
		FromStep:     cmd.FromStep,
		ToStep:       cmd.ToStep,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleSetStartStep(cmd commands.SetStartStep) ([]events.Event, error) {
	if err := a.requireStatus("set_start_step", models.WorkflowStatusDesigned); err != nil {
		return nil, err
	}

	if !a.State.HasStep(cmd.StepID) {
		return nil, validationError("set_start_step", a.ID, cmd.StepID, ErrStepNotFound)
	}

	event := events.StartStepSet{
		BaseEvent: a.newBase(events.StartStepSetEvent, cmd.GetBase()),
		StepID:    cmd.StepID,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleMarkEndStep(cmd commands.MarkEndStep) ([]events.Event, error) {
	if err := a.requireStatus("mark_end_step", models.WorkflowStatusDesigned); err != nil {
		return nil, err
	}

	if !a.State.HasStep(cmd.StepID) {
		return nil, validationError("mark_end_step", a.ID, cmd.StepID, ErrStepNotFound)
	}

	if a.State.IsEndStep(cmd.StepID) {
		return nil, &DomainError{
			Op:         "mark_end_step",
			WorkflowID: a.ID,
			Message:    fmt.Sprintf("step %s already marked as end step", cmd.StepID),
			Err:        ErrDuplicateEntity,
		}
	}

	event := events.EndStepMarked{
		BaseEvent: a.newBase(events.EndStepMarkedEvent, cmd.GetBase()),
		StepID:    cmd.StepID,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleValidate(cmd commands.ValidateWorkflow) ([]events.Event, error) {
	if err := a.requireStatus("validate", models.WorkflowStatusDesigned); err != nil {
		return nil, err
	}

	if len(a.State.Steps) == 0 {
		return nil, validationError("validate", a.ID, "", ErrNoSteps)
	}

	if a.State.StartStep == "" {
		return nil, validationError("validate", a.ID, "", ErrNoStartStep)
	}

	if len(a.State.EndSteps) == 0 {
		return nil, validationError("validate", a.ID, "", ErrNoEndSteps)
	}

	event := events.WorkflowValidated{
		BaseEvent:       a.newBase(events.WorkflowValidatedEvent, cmd.GetBase()),
		StepCount:       len(a.State.Steps),
		ConnectionCount: len(a.State.Connections),
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleStart(cmd commands.StartWorkflow) ([]events.Event, error) {
	if err := a.requireStatus("start", models.WorkflowStatusReady); err != nil {
		return nil, err
	}

	event := events.WorkflowStarted{
		BaseEvent:  a.newBase(events.WorkflowStartedEvent, cmd.GetBase()),
		InstanceID: uuid.New().String(),
		StartStep:  a.State.StartStep,
		Inputs:     cmd.Inputs,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleCompleteStep(cmd commands.CompleteStep) ([]events.Event, error) {
	if err := a.requireStatus("complete_step", models.WorkflowStatusRunning); err != nil {
		return nil, err
	}

	if !a.State.HasStep(cmd.StepID) {
		return nil, validationError("complete_step", a.ID, cmd.StepID, ErrStepNotFound)
	}

	if cmd.StepID != a.State.Execution.CurrentStep {
		return nil, validationError("complete_step", a.ID,
			fmt.Sprintf("step %s, current is %s", cmd.StepID, a.State.Execution.CurrentStep),
			ErrNotCurrentStep)
	}

	terminal := cmd.NextStep == nil
	if terminal && !a.State.IsEndStep(cmd.StepID) {
		return nil, validationError("complete_step", a.ID, cmd.StepID, ErrNextStepRequired)
	}

	if !terminal && !a.State.HasStep(*cmd.NextStep) {
		return nil, validationError("complete_step", a.ID, *cmd.NextStep, ErrStepNotFound)
	}

	// Runs move strictly forward: routing back to a step that already
	// completed in this instance would strand the deadline bookkeeping.
	if !terminal && a.State.Execution.HasCompleted(*cmd.NextStep) {
		return nil, validationError("complete_step", a.ID, *cmd.NextStep, ErrStepRevisited)
	}

	completed := events.StepCompleted{
		BaseEvent:  a.newBase(events.StepCompletedEvent, cmd.GetBase()),
		InstanceID: a.State.Execution.InstanceID,
		StepID:     cmd.StepID,
		NextStep:   cmd.NextStep,
		Output:     cmd.Output,
	}

	if !terminal {
		return []events.Event{completed}, nil
	}

	done := events.WorkflowCompleted{
		BaseEvent:  a.newBase(events.WorkflowCompletedEvent, cmd.GetBase()),
		InstanceID: a.State.Execution.InstanceID,
		Outputs:    a.collectOutputs(cmd),
	}

	return []events.Event{completed, done}, nil
}

func (a *Aggregate) handlePause(cmd commands.PauseWorkflow) ([]events.Event, error) {
	if err := a.requireStatus("pause", models.WorkflowStatusRunning); err != nil {
		return nil, err
	}

	event := events.WorkflowPaused{
		BaseEvent:  a.newBase(events.WorkflowPausedEvent, cmd.GetBase()),
		InstanceID: a.State.Execution.InstanceID,
		Reason:     cmd.Reason,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleResume(cmd commands.ResumeWorkflow) ([]events.Event, error) {
	if err := a.requireStatus("resume", models.WorkflowStatusPaused); err != nil {
		return nil, err
	}

	event := events.WorkflowResumed{
		BaseEvent:  a.newBase(events.WorkflowResumedEvent, cmd.GetBase()),
		InstanceID: a.State.Execution.InstanceID,
	}

	return []events.Event{event}, nil
}

func (a *Aggregate) handleFail(cmd commands.FailWorkflow) ([]events.Event, error) {
	if err := a.requireStatus("fail", models.WorkflowStatusRunning); err != nil {
		return nil, err
	}

	if cmd.Reason == "" {
		return nil, validationError("fail", a.ID, "failure reason is required", nil)
	}

	event := events.WorkflowFailed{
		BaseEvent:  a.newBase(events.WorkflowFailedEvent, cmd.GetBase()),
		InstanceID: a.State.Execution.InstanceID,
		Reason:     cmd.Reason,
		StepID:     a.State.Execution.CurrentStep,
	}

	return []events.Event{event}, nil
}

// collectOutputs merges per-step outputs with the final step's output for
// the completion event.
func (a *Aggregate) collectOutputs(cmd commands.CompleteStep) map[string]any {
	outputs := make(map[string]any, len(a.State.Execution.StepOutputs)+1)
	for stepID, output := range a.State.Execution.StepOutputs {
		outputs[stepID] = output
	}

	if cmd.Output != nil {
		outputs[cmd.StepID] = cmd.Output
	}

	return outputs
}

func (a *Aggregate) requireStatus(op string, want models.WorkflowStatus) error {
	if !a.Exists() {
		return &DomainError{Op: op, WorkflowID: a.ID, Err: ErrWorkflowNotFound}
	}

	if a.State.Status != want {
		return stateError(op, a.ID,
			fmt.Sprintf("must be in %s state, currently %s", want, a.State.Status))
	}

	return nil
}

// newBase builds an event envelope carrying the command's correlation chain.
func (a *Aggregate) newBase(eventType events.EventType, cmd commands.BaseCommand) events.BaseEvent {
	base := events.NewBaseEvent(eventType, a.ID)
	base.CorrelationID = cmd.Correlation()
	base.CausationID = cmd.ID

	return base
}

// ApplyEvent advances the aggregate state by one event. It is the only
// state mutator and must stay deterministic: replaying the same ordered log
// onto a fresh aggregate yields the same state.
func (a *Aggregate) ApplyEvent(event events.Event) error {
	if event.GetWorkflowID() != a.ID {
		return fmt.Errorf("event %s targets workflow %s, aggregate is %s",
			event.GetType(), event.GetWorkflowID(), a.ID)
	}

	if a.State == nil {
		if _, ok := event.(events.WorkflowCreated); !ok {
			return fmt.Errorf("cannot apply %s before workflow.created", event.GetType())
		}
	}

	switch e := event.(type) {
	case events.WorkflowCreated:
		a.applyCreated(e)
	case events.StepAdded:
		step := e.Step
		a.State.Steps = append(a.State.Steps, &step)
	case events.StepsConnected:
		a.State.Connections = append(a.State.Connections, &models.Connection{
			ID:       e.ConnectionID,
			FromStep: e.FromStep,
			ToStep:   e.ToStep,
		})
	case events.StartStepSet:
		a.State.StartStep = e.StepID
	case events.EndStepMarked:
		a.State.EndSteps = append(a.State.EndSteps, e.StepID)
	case events.WorkflowValidated:
		ts := e.Timestamp
		a.State.Status = models.WorkflowStatusReady
		a.State.ValidatedAt = &ts
	case events.WorkflowStarted:
		a.applyStarted(e)
	case events.StepCompleted:
		a.applyStepCompleted(e)
	case events.WorkflowPaused:
		ts := e.Timestamp
		a.State.Status = models.WorkflowStatusPaused
		a.State.PauseReason = e.Reason
		a.State.PausedAt = &ts
	case events.WorkflowResumed:
		a.State.Status = models.WorkflowStatusRunning
		a.State.PauseReason = ""
		a.State.PausedAt = nil
		a.State.Execution.StepEnteredAt = e.Timestamp
	case events.WorkflowFailed:
		a.State.Status = models.WorkflowStatusFailed
		a.State.FailureReason = e.Reason
		a.State.FailedAtStep = e.StepID
		a.State.Execution = nil
	case events.WorkflowCompleted:
		ts := e.Timestamp
		a.State.Status = models.WorkflowStatusCompleted
		a.State.CompletedAt = &ts
		a.State.Outputs = e.Outputs
		a.State.Execution = nil
	default:
		return fmt.Errorf("unknown event type: %s", event.GetType())
	}

	a.State.UpdatedAt = event.GetBase().Timestamp
	a.Version++

	return nil
}

func (a *Aggregate) applyCreated(e events.WorkflowCreated) {
	a.State = &models.Workflow{
		ID:          a.ID,
		Name:        e.Name,
		Description: e.Description,
		Status:      models.WorkflowStatusDesigned,
		InputSchema: e.InputSchema,
		CreatedAt:   e.Timestamp,
		UpdatedAt:   e.Timestamp,
	}
}

func (a *Aggregate) applyStarted(e events.WorkflowStarted) {
	a.State.Status = models.WorkflowStatusRunning
	a.State.Execution = &models.ExecutionContext{
		InstanceID:    e.InstanceID,
		Inputs:        e.Inputs,
		Variables:     make(map[string]any),
		StepOutputs:   make(map[string]any),
		StartedAt:     e.Timestamp,
		CurrentStep:   e.StartStep,
		StepEnteredAt: e.Timestamp,
	}
}

func (a *Aggregate) applyStepCompleted(e events.StepCompleted) {
	exec := a.State.Execution
	exec.CompletedSteps = append(exec.CompletedSteps, e.StepID)

	if e.Output != nil {
		exec.StepOutputs[e.StepID] = e.Output
	}

	if e.NextStep != nil {
		exec.CurrentStep = *e.NextStep
		exec.StepEnteredAt = e.Timestamp
	} else {
		exec.CurrentStep = ""
	}
}
