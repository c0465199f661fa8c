package evaluation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/llm"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type EvaluateRequest struct {
	ConversationID   int64    `json:"conversation_id"`
	UserRating       *int     `json:"user_rating"`
	UserFeedback     *string  `json:"user_feedback"`
	AccuracyScore    *float64 `json:"accuracy_score"`
	RelevanceScore   *float64 `json:"relevance_score"`
	HelpfulnessScore *float64 `json:"helpfulness_score"`
}

type TestCaseRequest struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	InputText      string  `json:"input_text"`
	ExpectedOutput *string `json:"expected_output"`
	Category       *string `json:"category"`
}

type ABTestRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	AgentAID    int64   `json:"agent_a_id"`
	AgentBID    int64   `json:"agent_b_id"`
	TestCaseID  int64   `json:"test_case_id"`
}

type EntityRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ABTestDetail struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	AgentA      EntityRef `json:"agent_a"`
	AgentB      EntityRef `json:"agent_b"`
	TestCase    EntityRef `json:"test_case"`
	CreatedTime time.Time `json:"created_time"`
}

type ABTestRunResult struct {
	ABTestID       int64  `json:"ab_test_id"`
	TestCase       string `json:"test_case"`
	AgentAResponse string `json:"agent_a_response"`
	AgentBResponse string `json:"agent_b_response"`
	Message        string `json:"message"`
}

// AgentEvalStats aggregates evaluations per agent. Each average covers only
// the evaluations where that metric was supplied.
type AgentEvalStats struct {
	AgentID            int64          `json:"agent_id"`
	AgentName          string         `json:"agent_name"`
	TotalEvaluations   int            `json:"total_evaluations"`
	AverageRating      float64        `json:"average_rating"`
	AverageAccuracy    float64        `json:"average_accuracy"`
	AverageRelevance   float64        `json:"average_relevance"`
	AverageHelpfulness float64        `json:"average_helpfulness"`
	RatingDistribution map[string]int `json:"rating_distribution"`
}

// ExportPayload carries exported training data in the requested format.
// Records is set for json, Content for jsonl and csv.
type ExportPayload struct {
	Format  string
	Records []models.TrainingRecord
	Content string
	Count   int
}

type Service struct {
	db        *sqlite.Client
	generator llm.Generator
}

func NewService(db *sqlite.Client, generator llm.Generator) *Service {
	return &Service{db: db, generator: generator}
}

func (s *Service) Evaluate(req EvaluateRequest) (*models.Evaluation, error) {
	conv, err := s.db.GetConversation(req.ConversationID)
	if err != nil {
		return nil, apperror.Internal("Failed to load conversation", err)
	}
	if conv == nil {
		return nil, apperror.NotFound("Conversation not found")
	}

	if req.UserRating != nil && (*req.UserRating < 1 || *req.UserRating > 5) {
		return nil, apperror.Validation("User rating must be between 1 and 5")
	}

	eval := &models.Evaluation{
		ConversationID:   req.ConversationID,
		UserRating:       req.UserRating,
		UserFeedback:     req.UserFeedback,
		AccuracyScore:    req.AccuracyScore,
		RelevanceScore:   req.RelevanceScore,
		HelpfulnessScore: req.HelpfulnessScore,
		CreatedTime:      time.Now().UTC(),
	}

	id, err := s.db.InsertEvaluation(eval)
	if err != nil {
		return nil, apperror.Internal("Failed to create evaluation", err)
	}
	eval.ID = id

	logger.Info("Evaluation recorded",
		zap.Int64("evaluation_id", id),
		zap.Int64("conversation_id", req.ConversationID),
	)

	return eval, nil
}

func (s *Service) ForConversation(conversationID int64) (*models.Evaluation, error) {
	eval, err := s.db.EvaluationByConversation(conversationID)
	if err != nil {
		return nil, apperror.Internal("Failed to load evaluation", err)
	}
	if eval == nil {
		return nil, apperror.NotFound("Evaluation not found")
	}
	return eval, nil
}

func (s *Service) AgentStats(agentID int64) (*AgentEvalStats, error) {
	agent, err := s.db.GetAgent(agentID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	if agent == nil {
		return nil, apperror.NotFound("Agent not found")
	}

	evaluations, err := s.db.EvaluationsForAgent(agentID)
	if err != nil {
		return nil, apperror.Internal("Failed to load evaluations", err)
	}

	stats := &AgentEvalStats{
		AgentID:            agentID,
		AgentName:          agent.Name,
		TotalEvaluations:   len(evaluations),
		RatingDistribution: map[string]int{},
	}
	if len(evaluations) == 0 {
		return stats, nil
	}

	ratings := []float64{}
	accuracy := []float64{}
	relevance := []float64{}
	helpfulness := []float64{}
	counts := map[int]int{}

	for _, e := range evaluations {
		if e.UserRating != nil {
			ratings = append(ratings, float64(*e.UserRating))
			counts[*e.UserRating]++
		}
		if e.AccuracyScore != nil {
			accuracy = append(accuracy, *e.AccuracyScore)
		}
		if e.RelevanceScore != nil {
			relevance = append(relevance, *e.RelevanceScore)
		}
		if e.HelpfulnessScore != nil {
			helpfulness = append(helpfulness, *e.HelpfulnessScore)
		}
	}

	stats.AverageRating = round2(mean(ratings))
	stats.AverageAccuracy = round2(mean(accuracy))
	stats.AverageRelevance = round2(mean(relevance))
	stats.AverageHelpfulness = round2(mean(helpfulness))

	if len(ratings) > 0 {
		for i := 1; i <= 5; i++ {
			stats.RatingDistribution[strconv.Itoa(i)] = counts[i]
		}
	}

	return stats, nil
}

func (s *Service) CreateTestCase(req TestCaseRequest) (*models.TestCase, error) {
	tc := &models.TestCase{
		Name:           req.Name,
		Description:    req.Description,
		InputText:      req.InputText,
		ExpectedOutput: req.ExpectedOutput,
		Category:       req.Category,
		CreatedTime:    time.Now().UTC(),
		IsActive:       true,
	}

	id, err := s.db.InsertTestCase(tc)
	if err != nil {
		return nil, apperror.Internal("Failed to create test case", err)
	}
	tc.ID = id

	return tc, nil
}

func (s *Service) ListTestCases(skip, limit int, category *string) ([]models.TestCase, error) {
	testCases, err := s.db.ListTestCases(skip, limit, category)
	if err != nil {
		return nil, apperror.Internal("Failed to list test cases", err)
	}
	return testCases, nil
}

// CreateABTest validates each referenced entity separately so the caller
// learns exactly which one is missing.
func (s *Service) CreateABTest(req ABTestRequest) (*ABTestDetail, error) {
	agentA, err := s.db.GetAgent(req.AgentAID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	agentB, err := s.db.GetAgent(req.AgentBID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	testCase, err := s.db.GetTestCase(req.TestCaseID)
	if err != nil {
		return nil, apperror.Internal("Failed to load test case", err)
	}

	if agentA == nil {
		return nil, apperror.NotFound("Agent A not found")
	}
	if agentB == nil {
		return nil, apperror.NotFound("Agent B not found")
	}
	if testCase == nil {
		return nil, apperror.NotFound("Test case not found")
	}

	test := &models.ABTest{
		Name:        req.Name,
		Description: req.Description,
		AgentAID:    req.AgentAID,
		AgentBID:    req.AgentBID,
		TestCaseID:  req.TestCaseID,
		CreatedTime: time.Now().UTC(),
	}

	id, err := s.db.InsertABTest(test)
	if err != nil {
		return nil, apperror.Internal("Failed to create A/B test", err)
	}

	logger.Info("A/B test created",
		zap.Int64("ab_test_id", id),
		zap.Int64("agent_a", req.AgentAID),
		zap.Int64("agent_b", req.AgentBID),
	)

	return &ABTestDetail{
		ID:          id,
		Name:        test.Name,
		Description: test.Description,
		AgentA:      EntityRef{ID: agentA.ID, Name: agentA.Name},
		AgentB:      EntityRef{ID: agentB.ID, Name: agentB.Name},
		TestCase:    EntityRef{ID: testCase.ID, Name: testCase.Name},
		CreatedTime: test.CreatedTime,
	}, nil
}

// RunABTest generates a response from both agents against the test case input
// and stores the pair. Rerunning overwrites the previous responses.
func (s *Service) RunABTest(ctx context.Context, id int64) (*ABTestRunResult, error) {
	test, err := s.db.GetABTest(id)
	if err != nil {
		return nil, apperror.Internal("Failed to load A/B test", err)
	}
	if test == nil {
		return nil, apperror.NotFound("A/B test not found")
	}

	agentA, err := s.db.GetAgent(test.AgentAID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	agentB, err := s.db.GetAgent(test.AgentBID)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	testCase, err := s.db.GetTestCase(test.TestCaseID)
	if err != nil {
		return nil, apperror.Internal("Failed to load test case", err)
	}

	if agentA == nil {
		return nil, apperror.NotFound("Agent A not found")
	}
	if agentB == nil {
		return nil, apperror.NotFound("Agent B not found")
	}
	if testCase == nil {
		return nil, apperror.NotFound("Test case not found")
	}

	responseA, err := s.generator.Generate(ctx, agentA, testCase.InputText)
	if err != nil {
		return nil, apperror.External("Response generation failed for agent A", err)
	}
	responseB, err := s.generator.Generate(ctx, agentB, testCase.InputText)
	if err != nil {
		return nil, apperror.External("Response generation failed for agent B", err)
	}

	if err := s.db.SetABTestResponses(id, responseA, responseB); err != nil {
		return nil, apperror.Internal("Failed to store A/B test responses", err)
	}

	logger.Info("A/B test completed", zap.Int64("ab_test_id", id))

	return &ABTestRunResult{
		ABTestID:       id,
		TestCase:       testCase.InputText,
		AgentAResponse: responseA,
		AgentBResponse: responseB,
		Message:        "A/B test completed successfully",
	}, nil
}

// ExportTrainingData flattens evaluated conversations into training records
// in json, jsonl, or csv form.
func (s *Service) ExportTrainingData(format string, agentID *int64, minRating *int) (*ExportPayload, error) {
	format = strings.ToLower(format)
	switch format {
	case "json", "jsonl", "csv":
	default:
		return nil, apperror.Validation("Unsupported format. Use 'json', 'jsonl', or 'csv'")
	}

	records, err := s.db.TrainingRecords(agentID, minRating)
	if err != nil {
		return nil, apperror.Internal("Failed to collect training data", err)
	}

	payload := &ExportPayload{Format: format, Count: len(records)}

	switch format {
	case "json":
		payload.Records = records
	case "jsonl":
		content, err := encodeJSONL(records)
		if err != nil {
			return nil, apperror.Internal("Failed to encode training data", err)
		}
		payload.Content = content
	case "csv":
		if len(records) > 0 {
			content, err := encodeCSV(records)
			if err != nil {
				return nil, apperror.Internal("Failed to encode training data", err)
			}
			payload.Content = content
		}
	}

	logger.Info("Training data exported",
		zap.String("format", format),
		zap.Int("records", payload.Count),
	)

	return payload, nil
}

func encodeJSONL(records []models.TrainingRecord) (string, error) {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to marshal record: %w", err)
		}
		lines = append(lines, string(raw))
	}
	return strings.Join(lines, "\n"), nil
}

func encodeCSV(records []models.TrainingRecord) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"input", "output", "rating", "feedback",
		"accuracy", "relevance", "helpfulness", "response_time", "timestamp"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Input,
			r.Output,
			intField(r.Rating),
			stringField(r.Feedback),
			floatField(r.Accuracy),
			floatField(r.Relevance),
			floatField(r.Helpfulness),
			floatField(r.ResponseTime),
			r.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return sb.String(), nil
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func stringField(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
