package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/evaluation"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type EvaluationHandler struct {
	evaluations *evaluation.Service
}

func NewEvaluationHandler(evaluations *evaluation.Service) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

func (h *EvaluationHandler) Evaluate(c *fiber.Ctx) error {
	var req evaluation.EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	eval, err := h.evaluations.Evaluate(req)
	if err != nil {
		return respondError(c, err)
	}

	metrics.EvaluationsRecorded.Inc()
	if eval.UserRating != nil {
		metrics.RatingScore.Observe(float64(*eval.UserRating))
	}

	return c.JSON(eval)
}

func (h *EvaluationHandler) ForConversation(c *fiber.Ctx) error {
	conversationID, err := parseIDParam(c, "conversation_id")
	if err != nil {
		return respondError(c, err)
	}

	eval, err := h.evaluations.ForConversation(conversationID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(eval)
}

func (h *EvaluationHandler) AgentStats(c *fiber.Ctx) error {
	agentID, err := parseIDParam(c, "agent_id")
	if err != nil {
		return respondError(c, err)
	}

	stats, err := h.evaluations.AgentStats(agentID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}

func (h *EvaluationHandler) CreateTestCase(c *fiber.Ctx) error {
	var req evaluation.TestCaseRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.InputText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and input_text are required",
		})
	}

	testCase, err := h.evaluations.CreateTestCase(req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(testCase)
}

func (h *EvaluationHandler) ListTestCases(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)

	var category *string
	if raw := c.Query("category"); raw != "" {
		category = &raw
	}

	testCases, err := h.evaluations.ListTestCases(skip, limit, category)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(testCases)
}

func (h *EvaluationHandler) CreateABTest(c *fiber.Ctx) error {
	var req evaluation.ABTestRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	detail, err := h.evaluations.CreateABTest(req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(detail)
}

func (h *EvaluationHandler) RunABTest(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.evaluations.RunABTest(c.Context(), id)
	if err != nil {
		metrics.ABTestsRun.WithLabelValues("error").Inc()
		return respondError(c, err)
	}

	metrics.ABTestsRun.WithLabelValues("success").Inc()

	return c.JSON(result)
}

func (h *EvaluationHandler) ExportTrainingData(c *fiber.Ctx) error {
	format := c.Query("format", "json")

	var agentID *int64
	if raw := c.QueryInt("agent_id", 0); raw != 0 {
		id := int64(raw)
		agentID = &id
	}

	var minRating *int
	if raw := c.QueryInt("min_rating", 0); raw != 0 {
		minRating = &raw
	}

	payload, err := h.evaluations.ExportTrainingData(format, agentID, minRating)
	if err != nil {
		return respondError(c, err)
	}

	metrics.TrainingExports.WithLabelValues(payload.Format).Inc()

	if payload.Format == "json" {
		return c.JSON(fiber.Map{
			"data":  payload.Records,
			"count": payload.Count,
		})
	}

	return c.JSON(fiber.Map{
		"content": payload.Content,
		"count":   payload.Count,
	})
}
