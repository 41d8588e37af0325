// Package web provides the HTTP binding for workflow commands, event
// streams, and router statistics.
package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/pkg/commands"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/router"
	"github.com/flowmesh/flowmesh/pkg/services"
)

type APIHandlers struct {
	service *services.WorkflowService
	router  *router.Router
}

func NewAPIHandlers(service *services.WorkflowService, r *router.Router) *APIHandlers {
	return &APIHandlers{
		service: service,
		router:  r,
	}
}

type createWorkflowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req createWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	workflowID := uuid.New().String()

	cmd := commands.CreateWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.CreateWorkflowCommand, workflowID),
		Name:        req.Name,
		Description: req.Description,
		InputSchema: req.InputSchema,
	}

	emitted, err := h.service.Execute(c.Context(), cmd)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workflow_id": workflowID,
		"events":      eventTypes(emitted),
	})
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	var step models.StepDefinition
	if err := c.Bind().JSON(&step); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	cmd := commands.AddStep{
		BaseCommand: commands.NewBaseCommand(commands.AddStepCommand, c.Params("id")),
		Step:        step,
	}

	return h.execute(c, cmd)
}

type connectStepsRequest struct {
	FromStep string `json:"from_step"`
	ToStep   string `json:"to_step"`
}

func (h *APIHandlers) ConnectSteps(c fiber.Ctx) error {
	var req connectStepsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	cmd := commands.ConnectSteps{
		BaseCommand: commands.NewBaseCommand(commands.ConnectStepsCommand, c.Params("id")),
		FromStep:    req.FromStep,
		ToStep:      req.ToStep,
	}

	return h.execute(c, cmd)
}

type stepRefRequest struct {
	StepID string `json:"step_id"`
}

func (h *APIHandlers) SetStartStep(c fiber.Ctx) error {
	var req stepRefRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	cmd := commands.SetStartStep{
		BaseCommand: commands.NewBaseCommand(commands.SetStartStepCommand, c.Params("id")),
		StepID:      req.StepID,
	}

	return h.execute(c, cmd)
}

func (h *APIHandlers) MarkEndStep(c fiber.Ctx) error {
	var req stepRefRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	cmd := commands.MarkEndStep{
		BaseCommand: commands.NewBaseCommand(commands.MarkEndStepCommand, c.Params("id")),
		StepID:      req.StepID,
	}

	return h.execute(c, cmd)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	cmd := commands.ValidateWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.ValidateWorkflowCommand, c.Params("id")),
	}

	return h.execute(c, cmd)
}

type startWorkflowRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	var req startWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	cmd := commands.StartWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.StartWorkflowCommand, c.Params("id")),
		Inputs:      req.Inputs,
	}

	return h.execute(c, cmd)
}

type completeStepRequest struct {
	NextStep *string        `json:"next_step,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
}

func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	var req completeStepRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	cmd := commands.CompleteStep{
		BaseCommand: commands.NewBaseCommand(commands.CompleteStepCommand, c.Params("id")),
		StepID:      c.Params("stepID"),
		NextStep:    req.NextStep,
		Output:      req.Output,
	}

	return h.execute(c, cmd)
}

type pauseWorkflowRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	var req pauseWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	cmd := commands.PauseWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.PauseWorkflowCommand, c.Params("id")),
		Reason:      req.Reason,
	}

	return h.execute(c, cmd)
}

func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	cmd := commands.ResumeWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.ResumeWorkflowCommand, c.Params("id")),
	}

	return h.execute(c, cmd)
}

type failWorkflowRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandlers) FailWorkflow(c fiber.Ctx) error {
	var req failWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	cmd := commands.FailWorkflow{
		BaseCommand: commands.NewBaseCommand(commands.FailWorkflowCommand, c.Params("id")),
		Reason:      req.Reason,
	}

	return h.execute(c, cmd)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	state, err := h.service.Load(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetWorkflowEvents(c fiber.Ctx) error {
	history, err := h.service.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": c.Params("id"),
		"count":       len(history),
		"events":      history,
	})
}

func (h *APIHandlers) GetRouterStats(c fiber.Ctx) error {
	return c.JSON(h.router.Stats())
}

func (h *APIHandlers) execute(c fiber.Ctx, cmd commands.Command) error {
	emitted, err := h.service.Execute(c.Context(), cmd)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": cmd.GetWorkflowID(),
		"events":      eventTypes(emitted),
	})
}

func eventTypes(emitted []events.Event) []string {
	types := make([]string, len(emitted))
	for i, event := range emitted {
		types[i] = string(event.GetType())
	}

	return types
}
