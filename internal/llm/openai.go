package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/pkg/circuitbreaker"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
	"github.com/JRChen0927/SimuAgent/pkg/retry"
)

// OpenAIGenerator talks to an OpenAI-compatible chat completion endpoint.
// Ollama and most local inference servers expose this API, so the base URL
// selects the actual backend.
type OpenAIGenerator struct {
	client      *openai.Client
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIGenerator(apiKey, baseURL string, timeout time.Duration) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("OpenAI generator initialized", zap.String("base_url", cfg.BaseURL))

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, agent *models.Agent, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: agent.Prompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userMessage,
		},
	}

	var content string

	err := g.cb.Execute(ctx, func() error {
		return retry.Do(ctx, g.retryConfig, func() error {
			resp, err := g.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       agent.ModelName,
					Messages:    messages,
					Temperature: float32(agent.Temperature),
					MaxTokens:   agent.MaxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("Completion generated",
				zap.Int64("agent_id", agent.ID),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return content, nil
}
