package models

import "time"

type Agent struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   *string    `json:"description"`
	Prompt        string     `json:"prompt"`
	ModelProvider string     `json:"model_provider"`
	ModelName     string     `json:"model_name"`
	Temperature   float64    `json:"temperature"`
	MaxTokens     int        `json:"max_tokens"`
	CreatedTime   time.Time  `json:"created_time"`
	UpdatedTime   time.Time  `json:"updated_time"`
	IsActive      bool       `json:"is_active"`
}

type Conversation struct {
	ID            int64     `json:"id"`
	AgentID       int64     `json:"agent_id"`
	SessionID     string    `json:"session_id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	ResponseTime  *float64  `json:"response_time"`
	Timestamp     time.Time `json:"timestamp"`
}

type Evaluation struct {
	ID               int64     `json:"id"`
	ConversationID   int64     `json:"conversation_id"`
	UserRating       *int      `json:"user_rating"`
	UserFeedback     *string   `json:"user_feedback"`
	AccuracyScore    *float64  `json:"accuracy_score"`
	RelevanceScore   *float64  `json:"relevance_score"`
	HelpfulnessScore *float64  `json:"helpfulness_score"`
	CreatedTime      time.Time `json:"created_time"`
}

type TestCase struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	InputText      string    `json:"input_text"`
	ExpectedOutput *string   `json:"expected_output"`
	Category       *string   `json:"category"`
	CreatedTime    time.Time `json:"created_time"`
	IsActive       bool      `json:"is_active"`
}

type ABTest struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	AgentAID       int64     `json:"agent_a_id"`
	AgentBID       int64     `json:"agent_b_id"`
	TestCaseID     int64     `json:"test_case_id"`
	AgentAResponse *string   `json:"agent_a_response"`
	AgentBResponse *string   `json:"agent_b_response"`
	AgentAScore    *float64  `json:"agent_a_score"`
	AgentBScore    *float64  `json:"agent_b_score"`
	Winner         *string   `json:"winner"`
	CreatedTime    time.Time `json:"created_time"`
}

// KnowledgeFile status values: uploaded -> processing -> processed | error.
type KnowledgeFile struct {
	ID               int64      `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	FilePath         string     `json:"file_path"`
	FileSize         int64      `json:"file_size"`
	FileType         string     `json:"file_type"`
	UploadTime       time.Time  `json:"upload_time"`
	Processed        bool       `json:"processed"`
	ProcessedTime    *time.Time `json:"processed_time"`
	Status           string     `json:"status"`
	ErrorMessage     *string    `json:"error_message"`
}

// TrainingRecord is one joined conversation+evaluation pair as exported for
// downstream training. Field order here dictates the CSV header order.
type TrainingRecord struct {
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	Rating       *int      `json:"rating"`
	Feedback     *string   `json:"feedback"`
	Accuracy     *float64  `json:"accuracy"`
	Relevance    *float64  `json:"relevance"`
	Helpfulness  *float64  `json:"helpfulness"`
	ResponseTime *float64  `json:"response_time"`
	Timestamp    time.Time `json:"timestamp"`
}

type AgentConversationStats struct {
	TotalConversations  int     `json:"total_conversations"`
	UniqueSessions      int     `json:"unique_sessions"`
	AverageResponseTime float64 `json:"average_response_time"`
}
