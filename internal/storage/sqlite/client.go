package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		prompt TEXT NOT NULL,
		model_provider TEXT NOT NULL,
		model_name TEXT NOT NULL,
		temperature REAL NOT NULL DEFAULT 0.7,
		max_tokens INTEGER NOT NULL DEFAULT 1000,
		created_time INTEGER NOT NULL,
		updated_time INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_agents_active ON agents(is_active);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		response_time REAL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		user_rating INTEGER,
		user_feedback TEXT,
		accuracy_score REAL,
		relevance_score REAL,
		helpfulness_score REAL,
		created_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evaluations_conversation ON evaluations(conversation_id);

	CREATE TABLE IF NOT EXISTS test_cases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		input_text TEXT NOT NULL,
		expected_output TEXT,
		category TEXT,
		created_time INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_test_cases_category ON test_cases(category);

	CREATE TABLE IF NOT EXISTS ab_tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		agent_a_id INTEGER NOT NULL,
		agent_b_id INTEGER NOT NULL,
		test_case_id INTEGER NOT NULL,
		agent_a_response TEXT,
		agent_b_response TEXT,
		agent_a_score REAL,
		agent_b_score REAL,
		winner TEXT,
		created_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS knowledge_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_type TEXT NOT NULL,
		upload_time INTEGER NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		processed_time INTEGER,
		status TEXT NOT NULL DEFAULT 'uploaded',
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_files_upload ON knowledge_files(upload_time);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertAgent(agent *models.Agent) (int64, error) {
	query := `
		INSERT INTO agents (name, description, prompt, model_provider, model_name,
			temperature, max_tokens, created_time, updated_time, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		agent.Name,
		nullString(agent.Description),
		agent.Prompt,
		agent.ModelProvider,
		agent.ModelName,
		agent.Temperature,
		agent.MaxTokens,
		agent.CreatedTime.Unix(),
		agent.UpdatedTime.Unix(),
		boolToInt(agent.IsActive),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert agent: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get agent id: %w", err)
	}

	logger.Debug("Agent inserted", zap.Int64("agent_id", id), zap.String("name", agent.Name))
	return id, nil
}

const agentColumns = `id, name, description, prompt, model_provider, model_name,
	temperature, max_tokens, created_time, updated_time, is_active`

func (c *Client) GetAgent(id int64) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = ?`

	agent, err := scanAgent(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

func (c *Client) GetActiveAgent(id int64) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = ? AND is_active = 1`

	agent, err := scanAgent(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active agent: %w", err)
	}

	return agent, nil
}

func (c *Client) ListAgents(activeOnly bool, skip, limit int) ([]models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`

	rows, err := c.db.Query(query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		agents = append(agents, *agent)
	}

	return agents, rows.Err()
}

// UpdateAgentFields applies a partial update. Keys are column names; the
// caller is responsible for only passing known columns.
func (c *Client) UpdateAgentFields(id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := `UPDATE agents SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	_, err := c.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}

	return nil
}

func (c *Client) InsertConversation(conv *models.Conversation) (int64, error) {
	query := `
		INSERT INTO conversations (agent_id, session_id, user_message, agent_response, response_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		conv.AgentID,
		conv.SessionID,
		conv.UserMessage,
		conv.AgentResponse,
		nullFloat(conv.ResponseTime),
		conv.Timestamp.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get conversation id: %w", err)
	}

	logger.Debug("Conversation inserted",
		zap.Int64("conversation_id", id),
		zap.String("session_id", conv.SessionID),
	)
	return id, nil
}

const conversationColumns = `id, agent_id, session_id, user_message, agent_response, response_time, timestamp`

func (c *Client) GetConversation(id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	conv, err := scanConversation(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// ConversationsBySession returns the session in chronological replay order.
// The id tiebreak keeps insertion order for rows sharing a timestamp.
func (c *Client) ConversationsBySession(sessionID string) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE session_id = ? ORDER BY timestamp ASC, id ASC`

	return c.queryConversations(query, sessionID)
}

func (c *Client) ConversationsByAgent(agentID int64, limit int) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE agent_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`

	return c.queryConversations(query, agentID, limit)
}

func (c *Client) ListConversations(skip, limit int, agentID *int64) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	args := []interface{}{}

	if agentID != nil {
		query += ` WHERE agent_id = ?`
		args = append(args, *agentID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	return c.queryConversations(query, args...)
}

func (c *Client) queryConversations(query string, args ...interface{}) ([]models.Conversation, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, *conv)
	}

	return conversations, rows.Err()
}

func (c *Client) DeleteConversation(id int64) (bool, error) {
	res, err := c.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted conversations: %w", err)
	}

	return affected > 0, nil
}

// DeleteSession removes every row for the session in one statement and
// reports how many were deleted.
func (c *Client) DeleteSession(sessionID string) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted session rows: %w", err)
	}

	if affected > 0 {
		logger.Info("Session deleted",
			zap.String("session_id", sessionID),
			zap.Int64("conversations", affected),
		)
	}

	return affected, nil
}

func (c *Client) AgentConversationStats(agentID int64) (*models.AgentConversationStats, error) {
	query := `
		SELECT COUNT(id), COUNT(DISTINCT session_id), COALESCE(AVG(response_time), 0)
		FROM conversations
		WHERE agent_id = ?
	`

	var stats models.AgentConversationStats
	err := c.db.QueryRow(query, agentID).Scan(
		&stats.TotalConversations,
		&stats.UniqueSessions,
		&stats.AverageResponseTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation stats: %w", err)
	}

	return &stats, nil
}

func (c *Client) InsertEvaluation(eval *models.Evaluation) (int64, error) {
	query := `
		INSERT INTO evaluations (conversation_id, user_rating, user_feedback,
			accuracy_score, relevance_score, helpfulness_score, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		eval.ConversationID,
		nullInt(eval.UserRating),
		nullString(eval.UserFeedback),
		nullFloat(eval.AccuracyScore),
		nullFloat(eval.RelevanceScore),
		nullFloat(eval.HelpfulnessScore),
		eval.CreatedTime.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert evaluation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get evaluation id: %w", err)
	}

	return id, nil
}

const evaluationColumns = `id, conversation_id, user_rating, user_feedback,
	accuracy_score, relevance_score, helpfulness_score, created_time`

func (c *Client) EvaluationByConversation(conversationID int64) (*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE conversation_id = ? ORDER BY id LIMIT 1`

	eval, err := scanEvaluation(c.db.QueryRow(query, conversationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	return eval, nil
}

func (c *Client) EvaluationsForAgent(agentID int64) ([]models.Evaluation, error) {
	query := `
		SELECT e.id, e.conversation_id, e.user_rating, e.user_feedback,
			e.accuracy_score, e.relevance_score, e.helpfulness_score, e.created_time
		FROM evaluations e
		JOIN conversations c ON c.id = e.conversation_id
		WHERE c.agent_id = ?
	`

	rows, err := c.db.Query(query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent evaluations: %w", err)
	}
	defer rows.Close()

	evaluations := []models.Evaluation{}
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation row: %w", err)
		}
		evaluations = append(evaluations, *eval)
	}

	return evaluations, rows.Err()
}

// TrainingRecords joins conversations to their evaluations (inner join, so
// unevaluated conversations are excluded) with optional agent and minimum
// rating filters.
func (c *Client) TrainingRecords(agentID *int64, minRating *int) ([]models.TrainingRecord, error) {
	query := `
		SELECT c.user_message, c.agent_response, e.user_rating, e.user_feedback,
			e.accuracy_score, e.relevance_score, e.helpfulness_score,
			c.response_time, c.timestamp
		FROM conversations c
		JOIN evaluations e ON c.id = e.conversation_id
	`
	conditions := []string{}
	args := []interface{}{}

	if agentID != nil {
		conditions = append(conditions, "c.agent_id = ?")
		args = append(args, *agentID)
	}
	if minRating != nil {
		conditions = append(conditions, "e.user_rating >= ?")
		args = append(args, *minRating)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY c.timestamp ASC, c.id ASC`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query training records: %w", err)
	}
	defer rows.Close()

	records := []models.TrainingRecord{}
	for rows.Next() {
		var r models.TrainingRecord
		var rating sql.NullInt64
		var feedback sql.NullString
		var accuracy, relevance, helpfulness, responseTime sql.NullFloat64
		var timestamp int64

		err := rows.Scan(&r.Input, &r.Output, &rating, &feedback,
			&accuracy, &relevance, &helpfulness, &responseTime, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training record: %w", err)
		}

		r.Rating = intPtr(rating)
		r.Feedback = stringPtr(feedback)
		r.Accuracy = floatPtr(accuracy)
		r.Relevance = floatPtr(relevance)
		r.Helpfulness = floatPtr(helpfulness)
		r.ResponseTime = floatPtr(responseTime)
		r.Timestamp = time.Unix(timestamp, 0).UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertTestCase(tc *models.TestCase) (int64, error) {
	query := `
		INSERT INTO test_cases (name, description, input_text, expected_output, category, created_time, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		tc.Name,
		nullString(tc.Description),
		tc.InputText,
		nullString(tc.ExpectedOutput),
		nullString(tc.Category),
		tc.CreatedTime.Unix(),
		boolToInt(tc.IsActive),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test case: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get test case id: %w", err)
	}

	return id, nil
}

const testCaseColumns = `id, name, description, input_text, expected_output, category, created_time, is_active`

func (c *Client) GetTestCase(id int64) (*models.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE id = ?`

	tc, err := scanTestCase(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}

	return tc, nil
}

func (c *Client) ListTestCases(skip, limit int, category *string) ([]models.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE is_active = 1`
	args := []interface{}{}

	if category != nil {
		query += ` AND category = ?`
		args = append(args, *category)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	testCases := []models.TestCase{}
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test case row: %w", err)
		}
		testCases = append(testCases, *tc)
	}

	return testCases, rows.Err()
}

func (c *Client) InsertABTest(test *models.ABTest) (int64, error) {
	query := `
		INSERT INTO ab_tests (name, description, agent_a_id, agent_b_id, test_case_id, created_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		test.Name,
		nullString(test.Description),
		test.AgentAID,
		test.AgentBID,
		test.TestCaseID,
		test.CreatedTime.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert A/B test: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get A/B test id: %w", err)
	}

	return id, nil
}

func (c *Client) GetABTest(id int64) (*models.ABTest, error) {
	query := `SELECT id, name, description, agent_a_id, agent_b_id, test_case_id,
		agent_a_response, agent_b_response, agent_a_score, agent_b_score, winner, created_time
		FROM ab_tests WHERE id = ?`

	var test models.ABTest
	var description, responseA, responseB, winner sql.NullString
	var scoreA, scoreB sql.NullFloat64
	var created int64

	err := c.db.QueryRow(query, id).Scan(
		&test.ID,
		&test.Name,
		&description,
		&test.AgentAID,
		&test.AgentBID,
		&test.TestCaseID,
		&responseA,
		&responseB,
		&scoreA,
		&scoreB,
		&winner,
		&created,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get A/B test: %w", err)
	}

	test.Description = stringPtr(description)
	test.AgentAResponse = stringPtr(responseA)
	test.AgentBResponse = stringPtr(responseB)
	test.AgentAScore = floatPtr(scoreA)
	test.AgentBScore = floatPtr(scoreB)
	test.Winner = stringPtr(winner)
	test.CreatedTime = time.Unix(created, 0).UTC()

	return &test, nil
}

// SetABTestResponses overwrites both stored responses; a rerun is destructive.
func (c *Client) SetABTestResponses(id int64, responseA, responseB string) error {
	query := `UPDATE ab_tests SET agent_a_response = ?, agent_b_response = ? WHERE id = ?`

	_, err := c.db.Exec(query, responseA, responseB, id)
	if err != nil {
		return fmt.Errorf("failed to store A/B test responses: %w", err)
	}

	return nil
}

func (c *Client) InsertKnowledgeFile(file *models.KnowledgeFile) (int64, error) {
	query := `
		INSERT INTO knowledge_files (filename, original_filename, file_path, file_size,
			file_type, upload_time, processed, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		file.Filename,
		file.OriginalFilename,
		file.FilePath,
		file.FileSize,
		file.FileType,
		file.UploadTime.Unix(),
		boolToInt(file.Processed),
		file.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert knowledge file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get knowledge file id: %w", err)
	}

	logger.Debug("Knowledge file inserted",
		zap.Int64("file_id", id),
		zap.String("filename", file.OriginalFilename),
	)
	return id, nil
}

const knowledgeFileColumns = `id, filename, original_filename, file_path, file_size,
	file_type, upload_time, processed, processed_time, status, error_message`

func (c *Client) GetKnowledgeFile(id int64) (*models.KnowledgeFile, error) {
	query := `SELECT ` + knowledgeFileColumns + ` FROM knowledge_files WHERE id = ?`

	file, err := scanKnowledgeFile(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge file: %w", err)
	}

	return file, nil
}

func (c *Client) ListKnowledgeFiles() ([]models.KnowledgeFile, error) {
	query := `SELECT ` + knowledgeFileColumns + ` FROM knowledge_files ORDER BY upload_time DESC, id DESC`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge files: %w", err)
	}
	defer rows.Close()

	files := []models.KnowledgeFile{}
	for rows.Next() {
		file, err := scanKnowledgeFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge file row: %w", err)
		}
		files = append(files, *file)
	}

	return files, rows.Err()
}

func (c *Client) DeleteKnowledgeFile(id int64) (bool, error) {
	res, err := c.db.Exec(`DELETE FROM knowledge_files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete knowledge file: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted knowledge files: %w", err)
	}

	return affected > 0, nil
}

func (c *Client) SetKnowledgeFileStatus(id int64, status string) error {
	_, err := c.db.Exec(`UPDATE knowledge_files SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set knowledge file status: %w", err)
	}
	return nil
}

func (c *Client) MarkKnowledgeFileProcessed(id int64, processedAt time.Time) error {
	query := `UPDATE knowledge_files SET processed = 1, processed_time = ?, status = 'processed',
		error_message = NULL WHERE id = ?`

	_, err := c.db.Exec(query, processedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark knowledge file processed: %w", err)
	}
	return nil
}

func (c *Client) MarkKnowledgeFileError(id int64, message string) error {
	query := `UPDATE knowledge_files SET status = 'error', error_message = ? WHERE id = ?`

	_, err := c.db.Exec(query, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark knowledge file error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var agent models.Agent
	var description sql.NullString
	var created, updated int64
	var active int

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&description,
		&agent.Prompt,
		&agent.ModelProvider,
		&agent.ModelName,
		&agent.Temperature,
		&agent.MaxTokens,
		&created,
		&updated,
		&active,
	)
	if err != nil {
		return nil, err
	}

	agent.Description = stringPtr(description)
	agent.CreatedTime = time.Unix(created, 0).UTC()
	agent.UpdatedTime = time.Unix(updated, 0).UTC()
	agent.IsActive = active != 0

	return &agent, nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var responseTime sql.NullFloat64
	var timestamp int64

	err := row.Scan(
		&conv.ID,
		&conv.AgentID,
		&conv.SessionID,
		&conv.UserMessage,
		&conv.AgentResponse,
		&responseTime,
		&timestamp,
	)
	if err != nil {
		return nil, err
	}

	conv.ResponseTime = floatPtr(responseTime)
	conv.Timestamp = time.Unix(timestamp, 0).UTC()

	return &conv, nil
}

func scanEvaluation(row rowScanner) (*models.Evaluation, error) {
	var eval models.Evaluation
	var rating sql.NullInt64
	var feedback sql.NullString
	var accuracy, relevance, helpfulness sql.NullFloat64
	var created int64

	err := row.Scan(
		&eval.ID,
		&eval.ConversationID,
		&rating,
		&feedback,
		&accuracy,
		&relevance,
		&helpfulness,
		&created,
	)
	if err != nil {
		return nil, err
	}

	eval.UserRating = intPtr(rating)
	eval.UserFeedback = stringPtr(feedback)
	eval.AccuracyScore = floatPtr(accuracy)
	eval.RelevanceScore = floatPtr(relevance)
	eval.HelpfulnessScore = floatPtr(helpfulness)
	eval.CreatedTime = time.Unix(created, 0).UTC()

	return &eval, nil
}

func scanTestCase(row rowScanner) (*models.TestCase, error) {
	var tc models.TestCase
	var description, expected, category sql.NullString
	var created int64
	var active int

	err := row.Scan(
		&tc.ID,
		&tc.Name,
		&description,
		&tc.InputText,
		&expected,
		&category,
		&created,
		&active,
	)
	if err != nil {
		return nil, err
	}

	tc.Description = stringPtr(description)
	tc.ExpectedOutput = stringPtr(expected)
	tc.Category = stringPtr(category)
	tc.CreatedTime = time.Unix(created, 0).UTC()
	tc.IsActive = active != 0

	return &tc, nil
}

func scanKnowledgeFile(row rowScanner) (*models.KnowledgeFile, error) {
	var file models.KnowledgeFile
	var processedTime sql.NullInt64
	var errorMessage sql.NullString
	var uploaded int64
	var processed int

	err := row.Scan(
		&file.ID,
		&file.Filename,
		&file.OriginalFilename,
		&file.FilePath,
		&file.FileSize,
		&file.FileType,
		&uploaded,
		&processed,
		&processedTime,
		&file.Status,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	file.UploadTime = time.Unix(uploaded, 0).UTC()
	file.Processed = processed != 0
	if processedTime.Valid {
		t := time.Unix(processedTime.Int64, 0).UTC()
		file.ProcessedTime = &t
	}
	file.ErrorMessage = stringPtr(errorMessage)

	return &file, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func intPtr(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
