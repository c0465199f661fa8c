package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/agent"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type AgentHandler struct {
	agents *agent.Service
}

func NewAgentHandler(agents *agent.Service) *AgentHandler {
	return &AgentHandler{agents: agents}
}

func (h *AgentHandler) Create(c *fiber.Ctx) error {
	var req agent.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.Prompt == "" || req.ModelProvider == "" || req.ModelName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name, prompt, model_provider and model_name are required",
		})
	}

	created, err := h.agents.Create(req)
	if err != nil {
		return respondError(c, err)
	}

	metrics.AgentsCreated.Inc()

	return c.JSON(created)
}

func (h *AgentHandler) List(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)
	activeOnly := c.QueryBool("active_only", true)

	agents, err := h.agents.List(activeOnly, skip, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(agents)
}

func (h *AgentHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	found, err := h.agents.Get(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(found)
}

func (h *AgentHandler) Update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req agent.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := h.agents.Update(id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(updated)
}

func (h *AgentHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.agents.SoftDelete(id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Agent deleted successfully",
	})
}

func (h *AgentHandler) Clone(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	clone, err := h.agents.Clone(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(clone)
}

func (h *AgentHandler) Validate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	report, err := h.agents.Validate(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(report)
}
