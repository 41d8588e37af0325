// Package services orchestrates the command path: rehydrate the aggregate,
// handle the command, append the produced events, then route them, in that
// order. Routing never happens for events that failed to persist.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowmesh/flowmesh/pkg/commands"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/eventstore"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/otelhelper"
	"github.com/flowmesh/flowmesh/pkg/router"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

type WorkflowService struct {
	store    eventstore.Store
	router   *router.Router
	validate *validator.Validate
	logger   *slog.Logger
	tracer   trace.Tracer
	index    *instanceIndex
}

func NewWorkflowService(store eventstore.Store, r *router.Router, logger *slog.Logger) *WorkflowService {
	return &WorkflowService{
		store:    store,
		router:   r,
		validate: validator.New(),
		logger:   logger.With("module", "workflow_service"),
		tracer:   noop.NewTracerProvider().Tracer("workflow_service"),
		index:    newInstanceIndex(),
	}
}

// RunningWorkflows lists ids of workflows this process has observed enter
// the running state and not yet leave it.
func (s *WorkflowService) RunningWorkflows() []string {
	return s.index.ids()
}

// WithTracer replaces the no-op tracer.
func (s *WorkflowService) WithTracer(tracer trace.Tracer) *WorkflowService {
	s.tracer = tracer

	return s
}

// Execute runs one command end to end and returns the events it produced.
// Events are appended to the store in emission order before any routing;
// an append failure aborts the remainder so the store never trails the
// router.
func (s *WorkflowService) Execute(ctx context.Context, cmd commands.Command) ([]events.Event, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, cmd.GetWorkflowID()),
		attribute.String(otelhelper.CommandTypeKey, string(cmd.GetType())),
		attribute.String(otelhelper.CommandIDKey, cmd.GetBase().ID),
	)
	defer span.End()

	if err := s.validate.Struct(cmd); err != nil {
		err = &workflow.DomainError{
			Op:         "execute",
			WorkflowID: cmd.GetWorkflowID(),
			Message:    err.Error(),
			Err:        workflow.ErrValidation,
		}
		otelhelper.SetError(span, err)

		return nil, err
	}

	agg, err := s.load(ctx, cmd.GetWorkflowID())
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if start, ok := cmd.(commands.StartWorkflow); ok && agg.Exists() {
		if err := s.checkInputs(agg.State, start.Inputs); err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	emitted, err := agg.HandleCommand(cmd)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	for _, event := range emitted {
		if err := s.store.Append(ctx, event); err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to append %s event: %w", event.GetType(), err)
		}
	}

	for _, event := range emitted {
		s.index.observe(event)

		delivered, err := s.router.Route(ctx, event)
		if err != nil {
			// Persisted but unrouted: surfaced to the caller, who may
			// re-route from the store.
			otelhelper.SetError(span, err)

			return emitted, fmt.Errorf("failed to route %s event: %w", event.GetType(), err)
		}

		s.logger.Debug("routed event",
			"workflow_id", cmd.GetWorkflowID(),
			"event_type", event.GetType(),
			"patterns", delivered)
	}

	return emitted, nil
}

// Load rehydrates a workflow's current state from its event stream.
func (s *WorkflowService) Load(ctx context.Context, workflowID string) (*models.Workflow, error) {
	agg, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !agg.Exists() {
		return nil, &workflow.DomainError{
			Op:         "load",
			WorkflowID: workflowID,
			Err:        workflow.ErrWorkflowNotFound,
		}
	}

	return agg.State, nil
}

// History returns the ordered event stream for one workflow.
func (s *WorkflowService) History(ctx context.Context, workflowID string) ([]events.Event, error) {
	stream, err := s.store.Read(ctx, workflowID)
	if err != nil {
		if eventstore.IsStreamNotFound(err) {
			return nil, &workflow.DomainError{
				Op:         "history",
				WorkflowID: workflowID,
				Err:        workflow.ErrWorkflowNotFound,
			}
		}

		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return stream, nil
}

// load builds the aggregate from its stream; a missing stream yields an
// empty aggregate so CreateWorkflow can target a fresh id.
func (s *WorkflowService) load(ctx context.Context, workflowID string) (*workflow.Aggregate, error) {
	stream, err := s.store.Read(ctx, workflowID)
	if err != nil {
		if eventstore.IsStreamNotFound(err) {
			return workflow.New(workflowID), nil
		}

		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	agg, err := workflow.FromHistory(workflowID, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate workflow %s: %w", workflowID, err)
	}

	return agg, nil
}

// checkInputs validates start inputs against the workflow's optional JSON
// schema.
func (s *WorkflowService) checkInputs(state *models.Workflow, inputs map[string]any) error {
	if state.InputSchema == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(state.InputSchema)
	if err != nil {
		return fmt.Errorf("invalid input schema: %w", err)
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(inputs),
	)
	if err != nil {
		return fmt.Errorf("input schema validation failed: %w", err)
	}

	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}

			detail += desc.String()
		}

		return &workflow.DomainError{
			Op:         "start",
			WorkflowID: state.ID,
			Message:    detail,
			Err:        workflow.ErrInputsRejected,
		}
	}

	return nil
}
