package agent

import (
	"time"

	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/config"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type CreateRequest struct {
	Name          string   `json:"name"`
	Description   *string  `json:"description"`
	Prompt        string   `json:"prompt"`
	ModelProvider string   `json:"model_provider"`
	ModelName     string   `json:"model_name"`
	Temperature   *float64 `json:"temperature"`
	MaxTokens     *int     `json:"max_tokens"`
}

type UpdateRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Prompt        *string  `json:"prompt"`
	ModelProvider *string  `json:"model_provider"`
	ModelName     *string  `json:"model_name"`
	Temperature   *float64 `json:"temperature"`
	MaxTokens     *int     `json:"max_tokens"`
	IsActive      *bool    `json:"is_active"`
}

// ValidationReport describes whether a stored agent still points at a model
// the registry allows. Registry edits after creation can invalidate agents.
type ValidationReport struct {
	AgentID           int64  `json:"agent_id"`
	IsValid           bool   `json:"is_valid"`
	ModelAvailable    bool   `json:"model_available"`
	ProviderAvailable bool   `json:"provider_available"`
	Message           string `json:"message"`
}

type Service struct {
	db       *sqlite.Client
	registry *config.Store
}

func NewService(db *sqlite.Client, registry *config.Store) *Service {
	return &Service{db: db, registry: registry}
}

func (s *Service) Create(req CreateRequest) (*models.Agent, error) {
	if !s.modelEnabled(req.ModelProvider, req.ModelName) {
		return nil, apperror.Validation(
			"Model '%s' not available in provider '%s'", req.ModelName, req.ModelProvider)
	}

	now := time.Now().UTC()
	agent := &models.Agent{
		Name:          req.Name,
		Description:   req.Description,
		Prompt:        req.Prompt,
		ModelProvider: req.ModelProvider,
		ModelName:     req.ModelName,
		Temperature:   0.7,
		MaxTokens:     1000,
		CreatedTime:   now,
		UpdatedTime:   now,
		IsActive:      true,
	}
	if req.Temperature != nil {
		agent.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		agent.MaxTokens = *req.MaxTokens
	}

	id, err := s.db.InsertAgent(agent)
	if err != nil {
		return nil, apperror.Internal("Failed to create agent", err)
	}
	agent.ID = id

	logger.Info("Agent created",
		zap.Int64("agent_id", id),
		zap.String("name", agent.Name),
		zap.String("model", agent.ModelName),
	)

	return agent, nil
}

func (s *Service) Get(id int64) (*models.Agent, error) {
	agent, err := s.db.GetAgent(id)
	if err != nil {
		return nil, apperror.Internal("Failed to load agent", err)
	}
	if agent == nil {
		return nil, apperror.NotFound("Agent not found")
	}
	return agent, nil
}

func (s *Service) List(activeOnly bool, skip, limit int) ([]models.Agent, error) {
	agents, err := s.db.ListAgents(activeOnly, skip, limit)
	if err != nil {
		return nil, apperror.Internal("Failed to list agents", err)
	}
	return agents, nil
}

// Update applies a partial update. The model pairing is only revalidated when
// both provider and name are supplied together.
func (s *Service) Update(id int64, req UpdateRequest) (*models.Agent, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	if req.ModelProvider != nil && req.ModelName != nil {
		if !s.modelEnabled(*req.ModelProvider, *req.ModelName) {
			return nil, apperror.Validation(
				"Model '%s' not available in provider '%s'", *req.ModelName, *req.ModelProvider)
		}
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Prompt != nil {
		fields["prompt"] = *req.Prompt
	}
	if req.ModelProvider != nil {
		fields["model_provider"] = *req.ModelProvider
	}
	if req.ModelName != nil {
		fields["model_name"] = *req.ModelName
	}
	if req.Temperature != nil {
		fields["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		fields["max_tokens"] = *req.MaxTokens
	}
	if req.IsActive != nil {
		fields["is_active"] = boolToInt(*req.IsActive)
	}
	fields["updated_time"] = time.Now().UTC().Unix()

	if err := s.db.UpdateAgentFields(id, fields); err != nil {
		return nil, apperror.Internal("Failed to update agent", err)
	}

	logger.Info("Agent updated", zap.Int64("agent_id", id))

	return s.Get(id)
}

// SoftDelete deactivates the agent, keeping its rows and history.
func (s *Service) SoftDelete(id int64) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"is_active":    0,
		"updated_time": time.Now().UTC().Unix(),
	}
	if err := s.db.UpdateAgentFields(id, fields); err != nil {
		return apperror.Internal("Failed to delete agent", err)
	}

	logger.Info("Agent deactivated", zap.Int64("agent_id", id))
	return nil
}

// Clone copies the agent's definition under a new name. The clone is always
// active and is not revalidated against the registry, so an invalid source
// yields an equally invalid copy.
func (s *Service) Clone(id int64) (*models.Agent, error) {
	original, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	clone := &models.Agent{
		Name:          original.Name + " (Copy)",
		Description:   original.Description,
		Prompt:        original.Prompt,
		ModelProvider: original.ModelProvider,
		ModelName:     original.ModelName,
		Temperature:   original.Temperature,
		MaxTokens:     original.MaxTokens,
		CreatedTime:   now,
		UpdatedTime:   now,
		IsActive:      true,
	}

	cloneID, err := s.db.InsertAgent(clone)
	if err != nil {
		return nil, apperror.Internal("Failed to clone agent", err)
	}
	clone.ID = cloneID

	logger.Info("Agent cloned",
		zap.Int64("source_id", id),
		zap.Int64("clone_id", cloneID),
	)

	return clone, nil
}

// Validate reports whether the agent's model is still enabled in the registry.
func (s *Service) Validate(id int64) (*ValidationReport, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	modelAvailable := s.modelEnabled(agent.ModelProvider, agent.ModelName)

	providerAvailable := false
	for _, name := range s.registry.Providers() {
		if name == agent.ModelProvider {
			providerAvailable = true
			break
		}
	}

	report := &ValidationReport{
		AgentID:           id,
		IsValid:           modelAvailable,
		ModelAvailable:    modelAvailable,
		ProviderAvailable: providerAvailable,
	}
	if modelAvailable {
		report.Message = "Agent configuration is valid"
	} else {
		report.Message = "Model '" + agent.ModelName + "' is not available"
	}

	return report, nil
}

func (s *Service) modelEnabled(provider, modelName string) bool {
	for _, m := range s.registry.EnabledModels(provider) {
		if m.Name == modelName {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
