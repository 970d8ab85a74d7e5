// Package ai defines the generation service contract used for task
// decomposition and replanning narratives.
package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCompletion is returned when a backend answers with no text.
var ErrEmptyCompletion = errors.New("generation service returned no content")

// CompletionRequest is a single prompt to the generation service.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the service's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is implemented by every generation backend. Output is untrusted.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// TextOf returns the trimmed response text or ErrEmptyCompletion.
func TextOf(resp *CompletionResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
