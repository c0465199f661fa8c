package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JRChen0927/SimuAgent/internal/storage/models"
)

func TestStubGeneratorResponse(t *testing.T) {
	gen := NewStubGenerator(time.Millisecond)

	agent := &models.Agent{
		ID:            1,
		Name:          "bot",
		ModelProvider: "ollama",
		ModelName:     "llama3",
	}

	resp, err := gen.Generate(context.Background(), agent, "what is the weather?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{"llama3", "ollama", "what is the weather?"} {
		if !strings.Contains(resp, want) {
			t.Errorf("response should mention %q, got %q", want, resp)
		}
	}
}

func TestStubGeneratorDelay(t *testing.T) {
	delay := 30 * time.Millisecond
	gen := NewStubGenerator(delay)

	start := time.Now()
	_, err := gen.Generate(context.Background(), &models.Agent{ModelName: "m", ModelProvider: "p"}, "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("expected at least %v delay, got %v", delay, elapsed)
	}
}

func TestStubGeneratorHonorsContext(t *testing.T) {
	gen := NewStubGenerator(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, &models.Agent{ModelName: "m", ModelProvider: "p"}, "hi")
	if err == nil {
		t.Fatal("expected context error")
	}
}
