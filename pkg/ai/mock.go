package ai

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
)

// MockProvider answers every request with Response, or fails with Err.
// Calls are counted so tests and dry runs can assert on them.
type MockProvider struct {
	Model    string
	Response string
	Err      error

	mu    sync.Mutex
	calls int
}

func (p *MockProvider) ID() string {
	return "mock:" + p.Model
}

func (p *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return &ai.CompletionResponse{
		Text:  p.Response,
		Model: p.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(p.Response) / 4},
	}, nil
}

func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
