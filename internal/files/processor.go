package files

import (
	"context"

	"github.com/JRChen0927/SimuAgent/internal/storage/models"
)

// Processor prepares an uploaded file for downstream indexing. The concrete
// pipeline is pluggable; the default implementation only flips status flags.
type Processor interface {
	Process(ctx context.Context, file *models.KnowledgeFile) error
}

type StubProcessor struct{}

func NewStubProcessor() *StubProcessor {
	return &StubProcessor{}
}

func (p *StubProcessor) Process(ctx context.Context, file *models.KnowledgeFile) error {
	return nil
}
