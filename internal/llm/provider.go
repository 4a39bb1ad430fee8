// Package llm wraps the chat-completion providers used by AI functions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// ProviderID names an LLM backend.
type ProviderID string

const (
	OpenAI    ProviderID = "openai"
	Anthropic ProviderID = "anthropic"
	Groq      ProviderID = "groq"
	Ollama    ProviderID = "ollama"
)

// Endpoints of the OpenAI-compatible providers.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1/"
	OllamaBaseURL = "http://localhost:11434/v1/"
)

// ErrMissingKey is returned when a provider that needs a key has none.
var ErrMissingKey = errors.New("api key required")

// Providers lists every supported backend.
var Providers = []ProviderID{OpenAI, Anthropic, Groq, Ollama}

// ParseProvider maps a user supplied name to a provider. Unknown names,
// including "default", select OpenAI.
func ParseProvider(name string) ProviderID {
	switch ProviderID(strings.ToLower(strings.TrimSpace(name))) {
	case Anthropic:
		return Anthropic
	case Groq:
		return Groq
	case Ollama:
		return Ollama
	default:
		return OpenAI
	}
}

// RequiresKey reports whether the provider needs an API key. Ollama runs
// locally and does not.
func (p ProviderID) RequiresKey() bool {
	return p != Ollama
}

// DefaultModel returns the model used when none is configured.
func (p ProviderID) DefaultModel() string {
	switch p {
	case Anthropic:
		return string(anthropic.ModelClaudeSonnet4_5_20250929)
	case Groq:
		return "llama-3.3-70b-versatile"
	case Ollama:
		return "llama3.2"
	default:
		return "gpt-4o-mini"
	}
}

// Provider completes a single system + user exchange.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider ProviderID
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// New builds the provider described by cfg.
func New(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = OpenAI
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Provider.DefaultModel()
	}
	if cfg.APIKey == "" && cfg.Provider.RequiresKey() {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingKey)
	}

	switch cfg.Provider {
	case Anthropic:
		return newClaude(cfg), nil
	case Groq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
	case Ollama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = OllamaBaseURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
	}

	return newChat(cfg), nil
}
