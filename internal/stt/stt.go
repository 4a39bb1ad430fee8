// Package stt transcribes captured sessions with cloud Whisper engines.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/llm"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// SilenceThreshold is the session RMS below which no engine is called.
const SilenceThreshold = 0.01

var (
	ErrUnknownModel      = errors.New("unknown transcription model")
	ErrMissingCredential = errors.New("transcription model needs an API key")
)

// Model is an entry in the transcription catalog.
type Model struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Provider llm.ProviderID `json:"provider"`
	// Engine is the model name sent to the provider.
	Engine string `json:"engine"`
}

// Models lists every supported transcription model.
var Models = []Model{
	{ID: "cloud-openai", Name: "OpenAI Whisper", Provider: llm.OpenAI, Engine: "whisper-1"},
	{ID: "cloud-groq", Name: "Groq Whisper Large v3 Turbo", Provider: llm.Groq, Engine: "whisper-large-v3-turbo"},
}

// LookupModel finds a catalog entry.
func LookupModel(id string) (Model, error) {
	for _, m := range Models {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
}

// SessionResolver maps session handles to audio on disk.
type SessionResolver interface {
	Lookup(id string) (audio.Session, error)
}

// VocabularySource supplies terms the engine should favour.
type VocabularySource interface {
	VocabularyTerms(ctx context.Context) ([]string, error)
}

// Service implements pipeline.Transcriber.
type Service struct {
	sessions SessionResolver
	vocab    VocabularySource
	baseURLs map[llm.ProviderID]string
	logger   *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithVocabulary feeds vocabulary terms into every request.
func WithVocabulary(v VocabularySource) Option {
	return func(s *Service) { s.vocab = v }
}

// WithBaseURL overrides a provider endpoint.
func WithBaseURL(p llm.ProviderID, url string) Option {
	return func(s *Service) {
		if url != "" {
			s.baseURLs[p] = url
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a transcription service over a session store.
func NewService(sessions SessionResolver, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		baseURLs: map[llm.ProviderID]string{llm.Groq: llm.GroqBaseURL},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// verboseTranscription is the verbose_json response body.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends the session's audio to the model's provider.
func (s *Service) Transcribe(ctx context.Context, req pipeline.TranscribeRequest) (pipeline.Transcription, error) {
	model, err := LookupModel(req.ModelID)
	if err != nil {
		return pipeline.Transcription{}, err
	}

	sess, err := s.sessions.Lookup(req.SessionHandle)
	if err != nil {
		return pipeline.Transcription{}, err
	}

	if sess.Measured && sess.RMS < SilenceThreshold {
		s.logger.Info("Session is silent, skipping transcription",
			"session", sess.ID, "rms", sess.RMS)
		return pipeline.Transcription{DurationMs: sess.DurationMs}, nil
	}

	if req.Credential == "" {
		return pipeline.Transcription{}, fmt.Errorf("%w: %s", ErrMissingCredential, model.ID)
	}

	f, err := os.Open(sess.Path)
	if err != nil {
		return pipeline.Transcription{}, fmt.Errorf("failed to open session audio: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(model.Engine),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if lang := requestLanguage(req.Language); lang != "" {
		params.Language = openai.String(lang)
	}
	if prompt := s.vocabularyPrompt(ctx); prompt != "" {
		params.Prompt = openai.String(prompt)
	}

	opts := []option.RequestOption{option.WithAPIKey(req.Credential)}
	if url := s.baseURLs[model.Provider]; url != "" {
		opts = append(opts, option.WithBaseURL(url))
	}
	client := openai.NewClient(opts...)

	s.logger.Debug("Requesting transcription", "model", model.ID, "session", sess.ID)

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return pipeline.Transcription{}, fmt.Errorf("%s transcription: %w", model.Provider, err)
	}

	var verbose verboseTranscription
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &verbose); err != nil {
			return pipeline.Transcription{}, fmt.Errorf("failed to decode transcription: %w", err)
		}
	}
	if verbose.Text == "" {
		verbose.Text = resp.Text
	}

	out := pipeline.Transcription{
		Text:       strings.TrimSpace(verbose.Text),
		Language:   verbose.Language,
		DurationMs: sess.DurationMs,
	}
	if verbose.Duration > 0 {
		out.DurationMs = int64(verbose.Duration * 1000)
	}
	for _, seg := range verbose.Segments {
		out.Segments = append(out.Segments, pipeline.Segment{
			StartMs: int64(seg.Start * 1000),
			EndMs:   int64(seg.End * 1000),
			Text:    strings.TrimSpace(seg.Text),
		})
	}

	return out, nil
}

func (s *Service) vocabularyPrompt(ctx context.Context) string {
	if s.vocab == nil {
		return ""
	}

	terms, err := s.vocab.VocabularyTerms(ctx)
	if err != nil {
		s.logger.Warn("Failed to load vocabulary, continuing without it", "error", err)
		return ""
	}

	return strings.Join(terms, ", ")
}

func requestLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
