package conversation

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/llm"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type ChatRequest struct {
	AgentID   int64   `json:"agent_id"`
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

type ChatResponse struct {
	SessionID     string    `json:"session_id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	ResponseTime  float64   `json:"response_time"`
	Timestamp     time.Time `json:"timestamp"`
}

type AgentStats struct {
	AgentID             int64   `json:"agent_id"`
	AgentName           string  `json:"agent_name"`
	TotalConversations  int     `json:"total_conversations"`
	UniqueSessions      int     `json:"unique_sessions"`
	AverageResponseTime float64 `json:"average_response_time"`
}

type Service struct {
	db        *sqlite.Client
	generator llm.Generator
}

func NewService(db *sqlite.Client, generator llm.Generator) *Service {
	return &Service{db: db, generator: generator}
}

// Chat runs one full turn: generate a reply, persist it, return the exchange.
// A missing session id starts a new session.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	agent, err := s.db.GetActiveAgent(req.AgentID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	if agent == nil {
		return nil, apperror.NotFound("Agent not found or inactive")
	}

	sessionID := uuid.NewString()
	if req.SessionID != nil && *req.SessionID != "" {
		sessionID = *req.SessionID
	}

	start := time.Now()
	response, err := s.generator.Generate(ctx, agent, req.Message)
	if err != nil {
		return nil, apperror.External("Response generation failed", err)
	}
	responseTime := time.Since(start).Seconds()

	timestamp := time.Now().UTC()
	conv := &models.Conversation{
		AgentID:       agent.ID,
		SessionID:     sessionID,
		UserMessage:   req.Message,
		AgentResponse: response,
		ResponseTime:  &responseTime,
		Timestamp:     timestamp,
	}

	if _, err := s.db.InsertConversation(conv); err != nil {
		return nil, apperror.Internal("Failed to save conversation", err)
	}

	logger.Info("Chat turn completed",
		zap.Int64("agent_id", agent.ID),
		zap.String("session_id", sessionID),
		zap.Float64("response_time", responseTime),
	)

	return &ChatResponse{
		SessionID:     sessionID,
		UserMessage:   req.Message,
		AgentResponse: response,
		ResponseTime:  responseTime,
		Timestamp:     timestamp,
	}, nil
}

// SessionHistory returns a session oldest first, for replay.
func (s *Service) SessionHistory(sessionID string) ([]models.Conversation, error) {
	conversations, err := s.db.ConversationsBySession(sessionID)
	if err != nil {
		return nil, apperror.Internal("Failed to load session history", err)
	}
	return conversations, nil
}

// ForAgent returns the agent's most recent conversations.
func (s *Service) ForAgent(agentID int64, limit int) ([]models.Conversation, error) {
	conversations, err := s.db.ConversationsByAgent(agentID, limit)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent conversations", err)
	}
	return conversations, nil
}

func (s *Service) List(skip, limit int, agentID *int64) ([]models.Conversation, error) {
	conversations, err := s.db.ListConversations(skip, limit, agentID)
	if err != nil {
		return nil, apperror.Internal("Failed to list conversations", err)
	}
	return conversations, nil
}

func (s *Service) DeleteSession(sessionID string) (int64, error) {
	deleted, err := s.db.DeleteSession(sessionID)
	if err != nil {
		return 0, apperror.Internal("Failed to delete session", err)
	}
	if deleted == 0 {
		return 0, apperror.NotFound("Session not found")
	}
	return deleted, nil
}

func (s *Service) Delete(id int64) error {
	deleted, err := s.db.DeleteConversation(id)
	if err != nil {
		return apperror.Internal("Failed to delete conversation", err)
	}
	if !deleted {
		return apperror.NotFound("Conversation not found")
	}
	return nil
}

// Stats aggregates conversation counts and timing for one agent. An agent
// with no conversations reports zeros.
func (s *Service) Stats(agentID int64) (*AgentStats, error) {
	agent, err := s.db.GetAgent(agentID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	if agent == nil {
		return nil, apperror.NotFound("Agent not found")
	}

	raw, err := s.db.AgentConversationStats(agentID)
	if err != nil {
		return nil, apperror.Internal("Failed to compute agent stats", err)
	}

	return &AgentStats{
		AgentID:             agentID,
		AgentName:           agent.Name,
		TotalConversations:  raw.TotalConversations,
		UniqueSessions:      raw.UniqueSessions,
		AverageResponseTime: round3(raw.AverageResponseTime),
	}, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
