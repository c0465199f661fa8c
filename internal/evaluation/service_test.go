package evaluation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JRChen0927/SimuAgent/internal/llm"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
)

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

func newTestService(t *testing.T) (*Service, *sqlite.Client) {
	t.Helper()

	db := newTestDB(t)
	return NewService(db, llm.NewStubGenerator(time.Millisecond)), db
}

func seedAgent(t *testing.T, db *sqlite.Client, name string) int64 {
	t.Helper()

	now := time.Now().UTC()
	id, err := db.InsertAgent(&models.Agent{
		Name:          name,
		Prompt:        "You are a helpful assistant.",
		ModelProvider: "ollama",
		ModelName:     "llama3",
		Temperature:   0.7,
		MaxTokens:     1000,
		CreatedTime:   now,
		UpdatedTime:   now,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("InsertAgent: %v", err)
	}
	return id
}

func seedConversation(t *testing.T, db *sqlite.Client, agentID int64) int64 {
	t.Helper()

	rt := 0.4
	id, err := db.InsertConversation(&models.Conversation{
		AgentID:       agentID,
		SessionID:     "s1",
		UserMessage:   "hello",
		AgentResponse: "hi",
		ResponseTime:  &rt,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertConversation: %v", err)
	}
	return id
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

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func TestEvaluateRatingBounds(t *testing.T) {
	svc, db := newTestService(t)
	convID := seedConversation(t, db, seedAgent(t, db, "bot"))

	tests := []struct {
		name    string
		rating  *int
		wantErr bool
	}{
		{"no rating", nil, false},
		{"min", intp(1), false},
		{"max", intp(5), false},
		{"too low", intp(0), true},
		{"too high", intp(6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Evaluate(EvaluateRequest{ConversationID: convID, UserRating: tt.rating})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				assertErrorCode(t, err, apperror.CodeValidation)
			} else if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
		})
	}
}

func TestEvaluateMissingConversation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Evaluate(EvaluateRequest{ConversationID: 99})
	if err == nil {
		t.Fatal("expected not found")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}

func TestAgentStatsAveragesAndDistribution(t *testing.T) {
	svc, db := newTestService(t)
	agentID := seedAgent(t, db, "bot")

	// metrics are averaged independently over the evaluations that carry them
	evals := []EvaluateRequest{
		{UserRating: intp(5), AccuracyScore: floatp(0.9)},
		{UserRating: intp(4), RelevanceScore: floatp(0.8)},
		{UserRating: intp(5)},
		{HelpfulnessScore: floatp(0.5)},
	}
	for _, e := range evals {
		e.ConversationID = seedConversation(t, db, agentID)
		if _, err := svc.Evaluate(e); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
	}

	stats, err := svc.AgentStats(agentID)
	if err != nil {
		t.Fatalf("AgentStats: %v", err)
	}

	if stats.TotalEvaluations != 4 {
		t.Errorf("expected 4 evaluations, got %d", stats.TotalEvaluations)
	}
	if stats.AverageRating != 4.67 {
		t.Errorf("expected average rating 4.67, got %v", stats.AverageRating)
	}
	if stats.AverageAccuracy != 0.9 {
		t.Errorf("expected average accuracy 0.9, got %v", stats.AverageAccuracy)
	}
	if stats.AverageRelevance != 0.8 {
		t.Errorf("expected average relevance 0.8, got %v", stats.AverageRelevance)
	}
	if stats.AverageHelpfulness != 0.5 {
		t.Errorf("expected average helpfulness 0.5, got %v", stats.AverageHelpfulness)
	}

	want := map[string]int{"1": 0, "2": 0, "3": 0, "4": 1, "5": 2}
	for k, v := range want {
		if stats.RatingDistribution[k] != v {
			t.Errorf("distribution[%s]: expected %d, got %d", k, v, stats.RatingDistribution[k])
		}
	}
}

func TestAgentStatsEmpty(t *testing.T) {
	svc, db := newTestService(t)
	agentID := seedAgent(t, db, "bot")

	stats, err := svc.AgentStats(agentID)
	if err != nil {
		t.Fatalf("AgentStats: %v", err)
	}
	if stats.TotalEvaluations != 0 || stats.AverageRating != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if len(stats.RatingDistribution) != 0 {
		t.Errorf("expected empty distribution, got %v", stats.RatingDistribution)
	}
}

func TestCreateABTestDistinctMissingMessages(t *testing.T) {
	svc, db := newTestService(t)
	agentA := seedAgent(t, db, "a")
	agentB := seedAgent(t, db, "b")

	tc, err := svc.CreateTestCase(TestCaseRequest{Name: "tc", InputText: "what is up"})
	if err != nil {
		t.Fatalf("CreateTestCase: %v", err)
	}

	tests := []struct {
		name    string
		req     ABTestRequest
		message string
	}{
		{"missing agent a", ABTestRequest{Name: "t", AgentAID: 99, AgentBID: agentB, TestCaseID: tc.ID}, "Agent A not found"},
		{"missing agent b", ABTestRequest{Name: "t", AgentAID: agentA, AgentBID: 99, TestCaseID: tc.ID}, "Agent B not found"},
		{"missing test case", ABTestRequest{Name: "t", AgentAID: agentA, AgentBID: agentB, TestCaseID: 99}, "Test case not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateABTest(tt.req)
			if err == nil {
				t.Fatal("expected not found")
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, appErr.Message)
			}
		})
	}
}

func TestRunABTestOverwritesResponses(t *testing.T) {
	svc, db := newTestService(t)
	agentA := seedAgent(t, db, "a")
	agentB := seedAgent(t, db, "b")

	tc, err := svc.CreateTestCase(TestCaseRequest{Name: "tc", InputText: "compare yourselves"})
	if err != nil {
		t.Fatalf("CreateTestCase: %v", err)
	}

	detail, err := svc.CreateABTest(ABTestRequest{
		Name: "duel", AgentAID: agentA, AgentBID: agentB, TestCaseID: tc.ID,
	})
	if err != nil {
		t.Fatalf("CreateABTest: %v", err)
	}
	if detail.AgentA.Name != "a" || detail.AgentB.Name != "b" {
		t.Errorf("unexpected detail refs: %+v", detail)
	}

	result, err := svc.RunABTest(context.Background(), detail.ID)
	if err != nil {
		t.Fatalf("RunABTest: %v", err)
	}
	if result.AgentAResponse == "" || result.AgentBResponse == "" {
		t.Error("both responses should be generated")
	}
	if result.TestCase != "compare yourselves" {
		t.Errorf("unexpected test case input: %q", result.TestCase)
	}

	stored, err := db.GetABTest(detail.ID)
	if err != nil {
		t.Fatalf("GetABTest: %v", err)
	}
	if stored.AgentAResponse == nil || *stored.AgentAResponse != result.AgentAResponse {
		t.Error("agent A response not persisted")
	}

	// rerun replaces the stored pair
	if _, err := svc.RunABTest(context.Background(), detail.ID); err != nil {
		t.Fatalf("RunABTest rerun: %v", err)
	}
	rerun, err := db.GetABTest(detail.ID)
	if err != nil {
		t.Fatalf("GetABTest: %v", err)
	}
	if rerun.AgentAResponse == nil {
		t.Error("rerun should keep responses populated")
	}
}

func TestListTestCasesCategoryFilter(t *testing.T) {
	svc, _ := newTestService(t)

	cat := "faq"
	for _, req := range []TestCaseRequest{
		{Name: "one", InputText: "q1", Category: &cat},
		{Name: "two", InputText: "q2"},
	} {
		if _, err := svc.CreateTestCase(req); err != nil {
			t.Fatalf("CreateTestCase: %v", err)
		}
	}

	all, err := svc.ListTestCases(0, 100, nil)
	if err != nil {
		t.Fatalf("ListTestCases: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 test cases, got %d", len(all))
	}

	filtered, err := svc.ListTestCases(0, 100, &cat)
	if err != nil {
		t.Fatalf("ListTestCases: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "one" {
		t.Errorf("category filter failed: %+v", filtered)
	}
}

func TestExportTrainingData(t *testing.T) {
	svc, db := newTestService(t)
	agentID := seedAgent(t, db, "bot")

	convID := seedConversation(t, db, agentID)
	if _, err := svc.Evaluate(EvaluateRequest{
		ConversationID: convID,
		UserRating:     intp(5),
		AccuracyScore:  floatp(0.9),
	}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	t.Run("json", func(t *testing.T) {
		payload, err := svc.ExportTrainingData("json", nil, nil)
		if err != nil {
			t.Fatalf("ExportTrainingData: %v", err)
		}
		if payload.Count != 1 || len(payload.Records) != 1 {
			t.Fatalf("expected 1 record, got %+v", payload)
		}
		r := payload.Records[0]
		if r.Input != "hello" || r.Output != "hi" {
			t.Errorf("unexpected record: %+v", r)
		}
		if r.Rating == nil || *r.Rating != 5 {
			t.Errorf("rating missing: %+v", r)
		}
	})

	t.Run("jsonl", func(t *testing.T) {
		payload, err := svc.ExportTrainingData("jsonl", nil, nil)
		if err != nil {
			t.Fatalf("ExportTrainingData: %v", err)
		}
		if payload.Count != 1 {
			t.Fatalf("expected count 1, got %d", payload.Count)
		}
		if !strings.Contains(payload.Content, `"input":"hello"`) {
			t.Errorf("jsonl content missing input field: %q", payload.Content)
		}
		if strings.Contains(payload.Content, "\n") {
			t.Error("single record should be a single line")
		}
	})

	t.Run("csv", func(t *testing.T) {
		payload, err := svc.ExportTrainingData("csv", nil, nil)
		if err != nil {
			t.Fatalf("ExportTrainingData: %v", err)
		}
		lines := strings.Split(strings.TrimRight(payload.Content, "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header and one row, got %d lines", len(lines))
		}
		if lines[0] != "input,output,rating,feedback,accuracy,relevance,helpfulness,response_time,timestamp" {
			t.Errorf("unexpected header: %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "hello,hi,5,") {
			t.Errorf("unexpected row: %q", lines[1])
		}
	})

	t.Run("csv empty", func(t *testing.T) {
		agentB := seedAgent(t, db, "other")
		payload, err := svc.ExportTrainingData("csv", &agentB, nil)
		if err != nil {
			t.Fatalf("ExportTrainingData: %v", err)
		}
		if payload.Count != 0 || payload.Content != "" {
			t.Errorf("empty export should have empty content, got %+v", payload)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := svc.ExportTrainingData("xml", nil, nil)
		if err == nil {
			t.Fatal("expected validation error")
		}
		assertErrorCode(t, err, apperror.CodeValidation)
	})
}
