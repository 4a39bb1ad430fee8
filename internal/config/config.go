package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/alkime/dictate/internal/aifunc"
	"github.com/alkime/dictate/internal/keyring"
	"github.com/alkime/dictate/internal/llm"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/rules"
	"github.com/alkime/dictate/internal/stt"
	"github.com/alkime/dictate/pkg/collections"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"

	// LanguageAuto lets the speech engine detect the language.
	LanguageAuto = "auto"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Dictation settings
	DataDir    string   `envconfig:"DICTATE_DATA_DIR"`
	STTModel   string   `envconfig:"DICTATE_STT_MODEL" default:"cloud-openai"`
	Language   string   `envconfig:"DICTATE_LANGUAGE" default:"auto"`
	Rules      []string `envconfig:"DICTATE_RULES" default:"remove-fillers,smart-punctuation"`
	RulesFile  string   `envconfig:"DICTATE_RULES_FILE"`
	AIFunction string   `envconfig:"DICTATE_AI_FUNCTION"`
	AIProvider string   `envconfig:"DICTATE_AI_PROVIDER" default:"openai"`
	AIModel    string   `envconfig:"DICTATE_AI_MODEL"`
	CopyOnly   bool     `envconfig:"DICTATE_COPY_ONLY" default:"false"`

	// Provider credentials. Empty keys fall back to the system keychain.
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	GroqAPIKey      string `envconfig:"GROQ_API_KEY"`
	OllamaBaseURL   string `envconfig:"OLLAMA_BASE_URL"`

	// keychain caches keychain reads, misses included, for the process
	// lifetime.
	keychainMu sync.Mutex
	keychain   map[keyring.APIKey]string
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &config, nil
}

// APIKey resolves the credential for a provider: environment first, then
// the keychain. Providers without keys return "". The keychain is read at
// most once per provider.
func (c *Config) APIKey(p llm.ProviderID) string {
	var env string
	var entry keyring.APIKey

	switch p {
	case llm.OpenAI:
		env, entry = c.OpenAIAPIKey, keyring.OpenAI
	case llm.Anthropic:
		env, entry = c.AnthropicAPIKey, keyring.Anthropic
	case llm.Groq:
		env, entry = c.GroqAPIKey, keyring.Groq
	default:
		return ""
	}

	if env != "" {
		return env
	}

	return c.keychainKey(p, entry)
}

// PreloadKeys reads every provider's keychain entry up front so later
// Settings calls never wait on the keychain.
func (c *Config) PreloadKeys() {
	for _, p := range []llm.ProviderID{llm.OpenAI, llm.Anthropic, llm.Groq} {
		c.APIKey(p)
	}
}

func (c *Config) keychainKey(p llm.ProviderID, entry keyring.APIKey) string {
	c.keychainMu.Lock()
	defer c.keychainMu.Unlock()

	if key, ok := c.keychain[entry]; ok {
		return key
	}

	key, err := keyring.Lookup(entry)
	if err != nil {
		slog.Debug("Keychain lookup failed", "provider", p, "error", err)
		key = ""
	}

	if c.keychain == nil {
		c.keychain = map[keyring.APIKey]string{}
	}
	c.keychain[entry] = key

	return key
}

// Settings snapshots the configuration for one dictation cycle.
//
// Without an explicit AI function, an enabled fix-grammar rule becomes the
// cycle's AI invocation.
func (c *Config) Settings() pipeline.Settings {
	s := pipeline.Settings{
		ModelID: c.STTModel,
		Rules:   c.enabledRules(),
	}

	if !strings.EqualFold(strings.TrimSpace(c.Language), LanguageAuto) {
		s.Language = strings.TrimSpace(c.Language)
	}

	if m, err := stt.LookupModel(c.STTModel); err == nil {
		s.STTCredential = c.APIKey(m.Provider)
	}

	fnID := strings.TrimSpace(c.AIFunction)
	if fnID == "" && slices.Contains(s.Rules, rules.FixGrammar) {
		fnID = aifunc.FixGrammarID
	}

	if fnID != "" {
		p := llm.ParseProvider(c.AIProvider)
		s.AI = &pipeline.AIInvocation{
			FunctionID: fnID,
			ProviderID: string(p),
			APIKey:     c.APIKey(p),
			Model:      c.AIModel,
		}
	}

	return s
}

func (c *Config) enabledRules() []string {
	trimmed := collections.Apply(c.Rules, strings.TrimSpace)
	return collections.Filter(trimmed, collections.NonZero[string])
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		return "default-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'; " +
			"form-action 'none'"
	}

	return "default-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:"
}
