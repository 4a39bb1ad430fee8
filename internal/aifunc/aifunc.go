// Package aifunc resolves AI functions (prompted rewrites) and runs them
// against an LLM provider.
package aifunc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkime/dictate/internal/llm"
	"github.com/alkime/dictate/internal/pipeline"
)

// FixGrammarID is the function behind the fix-grammar rule.
const FixGrammarID = "fix-grammar"

// ErrUnknownFunction is returned for ids that are neither built in nor stored.
var ErrUnknownFunction = errors.New("unknown ai function")

// Function is a named system prompt.
type Function struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	// Provider and Model are preferences for custom functions; the cycle's
	// own invocation wins when it names them.
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Builtin  bool   `json:"builtin"`
}

// Builtins are always available and cannot be deleted.
var Builtins = []Function{
	{ID: "email", Name: "Professional Email", Prompt: emailPrompt, Provider: "default", Builtin: true},
	{ID: "code-prompt", Name: "Code Prompt", Prompt: codePromptPrompt, Provider: "default", Builtin: true},
	{ID: "summarize", Name: "Summarize", Prompt: summarizePrompt, Provider: "default", Builtin: true},
	{ID: "casual", Name: "Casual Rewrite", Prompt: casualPrompt, Provider: "default", Builtin: true},
	{ID: "translate", Name: "Translate to English", Prompt: translatePrompt, Provider: "default", Builtin: true},
	{ID: FixGrammarID, Name: "Fix Grammar", Prompt: GrammarSystemPrompt, Provider: "default", Builtin: true},
}

// IsBuiltin reports whether id names a built-in function.
func IsBuiltin(id string) bool {
	for _, f := range Builtins {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Store lists user defined functions.
type Store interface {
	ListFunctions(ctx context.Context) ([]Function, error)
}

// ProviderFactory builds an LLM provider.
type ProviderFactory func(cfg llm.Config) (llm.Provider, error)

// Service implements pipeline.AIInvoker.
type Service struct {
	store    Store
	factory  ProviderFactory
	baseURLs map[llm.ProviderID]string
	logger   *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithBaseURL points a provider at a different endpoint, e.g. a remote
// Ollama host.
func WithBaseURL(p llm.ProviderID, url string) Option {
	return func(s *Service) {
		if url != "" {
			s.baseURLs[p] = url
		}
	}
}

// WithProviderFactory replaces llm.New.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Service) { s.factory = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service. store may be nil, leaving only built-ins.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		factory:  llm.New,
		baseURLs: map[llm.ProviderID]string{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the built-ins followed by stored functions.
func (s *Service) List(ctx context.Context) ([]Function, error) {
	out := append([]Function(nil), Builtins...)
	if s.store == nil {
		return out, nil
	}

	custom, err := s.store.ListFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom functions: %w", err)
	}

	for _, f := range custom {
		if IsBuiltin(f.ID) {
			s.logger.Warn("Custom function shadows a built-in, ignoring", "id", f.ID)
			continue
		}
		out = append(out, f)
	}

	return out, nil
}

// Lookup finds a function by id.
func (s *Service) Lookup(ctx context.Context, id string) (Function, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Function{}, err
	}

	for _, f := range all {
		if f.ID == id {
			return f, nil
		}
	}

	return Function{}, fmt.Errorf("%w: %q", ErrUnknownFunction, id)
}

// Invoke runs the selected function over text.
func (s *Service) Invoke(ctx context.Context, text string, inv pipeline.AIInvocation) (string, error) {
	fn, err := s.Lookup(ctx, inv.FunctionID)
	if err != nil {
		return "", err
	}

	providerName := inv.ProviderID
	if providerName == "" {
		providerName = fn.Provider
	}
	provider := llm.ParseProvider(providerName)

	model := inv.Model
	if model == "" {
		model = fn.Model
	}

	p, err := s.factory(llm.Config{
		Provider: provider,
		APIKey:   inv.APIKey,
		Model:    model,
		BaseURL:  s.baseURLs[provider],
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("Invoking AI function", "function", fn.ID, "provider", provider, "model", model)

	out, err := p.Complete(ctx, fn.Prompt, text)
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s returned no text", provider)
	}

	return out, nil
}

// RequiresCredential reports whether the named provider needs an API key.
func (s *Service) RequiresCredential(providerID string) bool {
	return llm.ParseProvider(providerID).RequiresKey()
}
