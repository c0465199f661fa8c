package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JRChen0927/SimuAgent/internal/llm"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
)

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, agent *models.Agent, userMessage string) (string, error) {
	return "", errors.New("backend unavailable")
}

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return db
}

func seedAgent(t *testing.T, db *sqlite.Client, active bool) int64 {
	t.Helper()

	now := time.Now().UTC()
	id, err := db.InsertAgent(&models.Agent{
		Name:          "bot",
		Prompt:        "You are a helpful assistant.",
		ModelProvider: "ollama",
		ModelName:     "llama3",
		Temperature:   0.7,
		MaxTokens:     1000,
		CreatedTime:   now,
		UpdatedTime:   now,
		IsActive:      active,
	})
	if err != nil {
		t.Fatalf("InsertAgent: %v", err)
	}
	return id
}

func newChatService(t *testing.T) (*Service, int64) {
	t.Helper()

	db := newTestDB(t)
	agentID := seedAgent(t, db, true)
	return NewService(db, llm.NewStubGenerator(time.Millisecond)), agentID
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func TestChatPersistsTurn(t *testing.T) {
	svc, agentID := newChatService(t)

	resp, err := svc.Chat(context.Background(), ChatRequest{
		AgentID: agentID,
		Message: "hello there",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.SessionID == "" {
		t.Error("a session id should be generated when none is supplied")
	}
	if resp.AgentResponse == "" {
		t.Error("agent response should not be empty")
	}
	if resp.ResponseTime <= 0 {
		t.Errorf("response time should be positive, got %v", resp.ResponseTime)
	}

	history, err := svc.SessionHistory(resp.SessionID)
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 persisted conversation, got %d", len(history))
	}
	if history[0].UserMessage != "hello there" {
		t.Errorf("unexpected persisted message: %q", history[0].UserMessage)
	}
}

func TestChatReusesSuppliedSession(t *testing.T) {
	svc, agentID := newChatService(t)

	session := "my-session"
	for i := 0; i < 3; i++ {
		_, err := svc.Chat(context.Background(), ChatRequest{
			AgentID:   agentID,
			Message:   "ping",
			SessionID: &session,
		})
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}

	history, err := svc.SessionHistory(session)
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 turns in session, got %d", len(history))
	}
}

func TestChatInactiveAgent(t *testing.T) {
	db := newTestDB(t)
	agentID := seedAgent(t, db, false)
	svc := NewService(db, llm.NewStubGenerator(time.Millisecond))

	_, err := svc.Chat(context.Background(), ChatRequest{AgentID: agentID, Message: "hi"})
	if err == nil {
		t.Fatal("expected error for inactive agent")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}

func TestChatGeneratorFailureIsExternal(t *testing.T) {
	db := newTestDB(t)
	agentID := seedAgent(t, db, true)
	svc := NewService(db, failingGenerator{})

	_, err := svc.Chat(context.Background(), ChatRequest{AgentID: agentID, Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	assertErrorCode(t, err, apperror.CodeExternal)

	// nothing persisted on failure
	conversations, listErr := svc.List(0, 100, nil)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(conversations) != 0 {
		t.Errorf("failed turn must not be recorded, got %d rows", len(conversations))
	}
}

func TestDeleteSession(t *testing.T) {
	svc, agentID := newChatService(t)

	session := "s1"
	if _, err := svc.Chat(context.Background(), ChatRequest{AgentID: agentID, Message: "hi", SessionID: &session}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	deleted, err := svc.DeleteSession(session)
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted conversation, got %d", deleted)
	}

	_, err = svc.DeleteSession(session)
	if err == nil {
		t.Fatal("expected not found for empty session")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}

func TestDeleteConversation(t *testing.T) {
	svc, agentID := newChatService(t)

	resp, err := svc.Chat(context.Background(), ChatRequest{AgentID: agentID, Message: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	history, err := svc.SessionHistory(resp.SessionID)
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}

	if err := svc.Delete(history[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err = svc.Delete(history[0].ID)
	if err == nil {
		t.Fatal("expected not found on second delete")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}

func TestStats(t *testing.T) {
	svc, agentID := newChatService(t)

	stats, err := svc.Stats(agentID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConversations != 0 || stats.UniqueSessions != 0 || stats.AverageResponseTime != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}

	s1, s2 := "s1", "s2"
	for _, session := range []*string{&s1, &s1, &s2} {
		if _, err := svc.Chat(context.Background(), ChatRequest{AgentID: agentID, Message: "hi", SessionID: session}); err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}

	stats, err = svc.Stats(agentID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConversations != 3 {
		t.Errorf("expected 3 conversations, got %d", stats.TotalConversations)
	}
	if stats.UniqueSessions != 2 {
		t.Errorf("expected 2 sessions, got %d", stats.UniqueSessions)
	}
	if stats.AgentName != "bot" {
		t.Errorf("unexpected agent name %q", stats.AgentName)
	}

	_, err = svc.Stats(99)
	if err == nil {
		t.Fatal("expected not found for unknown agent")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}
