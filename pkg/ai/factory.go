// Package ai holds the generation service backends and the resilience
// wrapper they are served through.
package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
)

var (
	ErrMissingAPIKey       = errors.New("generation API key not provided")
	ErrUnsupportedProvider = errors.New("unsupported generation provider")
)

// Config selects and tunes a generation backend.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	// MockResponse is what the mock backend answers with.
	MockResponse string           `mapstructure:"mock_response"`
	Resilience   ResilienceConfig `mapstructure:",squash"`
}

// NewProvider builds the configured backend. Remote backends are wrapped in
// a ResilientProvider; the mock is returned bare.
func NewProvider(cfg Config) (ai.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic", "":
		p, err := NewAnthropicProvider(cfg.Model, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return NewResilientProviderWithConfig(p, cfg.Resilience), nil
	case "ollama":
		return NewResilientProviderWithConfig(NewOllamaProvider(cfg.Model, cfg.BaseURL), cfg.Resilience), nil
	case "mock":
		return &MockProvider{Model: cfg.Model, Response: cfg.MockResponse}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
