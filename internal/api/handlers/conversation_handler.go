package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/conversation"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type ConversationHandler struct {
	conversations *conversation.Service
}

func NewConversationHandler(conversations *conversation.Service) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) Chat(c *fiber.Ctx) error {
	var req conversation.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	start := time.Now()
	resp, err := h.conversations.Chat(c.Context(), req)
	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		return respondError(c, err)
	}

	metrics.ChatTotal.WithLabelValues("success").Inc()
	metrics.ChatDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())

	return c.JSON(resp)
}

func (h *ConversationHandler) SessionHistory(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")

	history, err := h.conversations.SessionHistory(sessionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(history)
}

func (h *ConversationHandler) ForAgent(c *fiber.Ctx) error {
	agentID, err := parseIDParam(c, "agent_id")
	if err != nil {
		return respondError(c, err)
	}
	limit := c.QueryInt("limit", 50)

	conversations, err := h.conversations.ForAgent(agentID, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(conversations)
}

func (h *ConversationHandler) List(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)

	var agentID *int64
	if raw := c.QueryInt("agent_id", 0); raw != 0 {
		id := int64(raw)
		agentID = &id
	}

	conversations, err := h.conversations.List(skip, limit, agentID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(conversations)
}

func (h *ConversationHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")

	if _, err := h.conversations.DeleteSession(sessionID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Session " + sessionID + " deleted successfully",
	})
}

func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.conversations.Delete(id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Conversation deleted successfully",
	})
}

func (h *ConversationHandler) AgentStats(c *fiber.Ctx) error {
	agentID, err := parseIDParam(c, "agent_id")
	if err != nil {
		return respondError(c, err)
	}

	stats, err := h.conversations.Stats(agentID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}
