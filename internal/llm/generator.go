package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

// Generator produces one complete agent reply for one user message.
type Generator interface {
	Generate(ctx context.Context, agent *models.Agent, userMessage string) (string, error)
}

// StubGenerator returns a canned reply after a fixed delay. It stands in for
// a real model backend during development and in tests.
type StubGenerator struct {
	delay time.Duration
}

func NewStubGenerator(delay time.Duration) *StubGenerator {
	return &StubGenerator{delay: delay}
}

func (g *StubGenerator) Generate(ctx context.Context, agent *models.Agent, userMessage string) (string, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	response := fmt.Sprintf(
		"[simulated response] Answering %q with model %s: this is a placeholder reply; a real deployment would call the %s provider's %s model here.",
		userMessage, agent.ModelName, agent.ModelProvider, agent.ModelName,
	)

	logger.Debug("Stub response generated",
		zap.Int64("agent_id", agent.ID),
		zap.String("model", agent.ModelName),
	)

	return response, nil
}
