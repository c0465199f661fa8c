package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/conversation"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type WebSocketHandler struct {
	conversations *conversation.Service
}

func NewWebSocketHandler(conversations *conversation.Service) *WebSocketHandler {
	return &WebSocketHandler{conversations: conversations}
}

// HandleConnection serves full chat turns over one socket. Each incoming chat
// message produces exactly one complete response frame.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string  `json:"type"`
			AgentID   int64   `json:"agent_id"`
			Message   string  `json:"message"`
			SessionID *string `json:"session_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if msg.Message == "" {
			h.sendError(c, "message is required")
			continue
		}

		start := time.Now()
		resp, err := h.conversations.Chat(context.Background(), conversation.ChatRequest{
			AgentID:   msg.AgentID,
			Message:   msg.Message,
			SessionID: msg.SessionID,
		})
		if err != nil {
			metrics.ChatTotal.WithLabelValues("error").Inc()
			logger.Error("Failed to process chat message", zap.Error(err))
			h.sendError(c, chatErrorMessage(err))
			continue
		}

		metrics.ChatTotal.WithLabelValues("success").Inc()
		metrics.ChatDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())

		if err := h.sendResponse(c, resp); err != nil {
			logger.Error("Failed to write WebSocket response", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendResponse(c *websocket.Conn, resp *conversation.ChatResponse) error {
	return c.WriteJSON(map[string]interface{}{
		"type":           "response",
		"session_id":     resp.SessionID,
		"user_message":   resp.UserMessage,
		"agent_response": resp.AgentResponse,
		"response_time":  resp.ResponseTime,
		"timestamp":      resp.Timestamp,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func chatErrorMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Failed to process message"
}
