package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkime/dictate/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	assert.Equal(t, llm.Anthropic, llm.ParseProvider("Anthropic"))
	assert.Equal(t, llm.Groq, llm.ParseProvider(" groq "))
	assert.Equal(t, llm.Ollama, llm.ParseProvider("ollama"))
	assert.Equal(t, llm.OpenAI, llm.ParseProvider("openai"))
	assert.Equal(t, llm.OpenAI, llm.ParseProvider("default"))
	assert.Equal(t, llm.OpenAI, llm.ParseProvider(""))
}

func TestRequiresKey(t *testing.T) {
	for _, p := range llm.Providers {
		assert.Equal(t, p != llm.Ollama, p.RequiresKey(), p)
		assert.NotEmpty(t, p.DefaultModel(), p)
	}
}

func TestNew_MissingKey(t *testing.T) {
	_, err := llm.New(llm.Config{Provider: llm.Groq})
	require.ErrorIs(t, err, llm.ErrMissingKey)

	p, err := llm.New(llm.Config{Provider: llm.Ollama})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestChatProvider(t *testing.T) {
	var got chatRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Dear team, the build is green."}}]
		}`))
	}))
	defer srv.Close()

	p, err := llm.New(llm.Config{Provider: llm.Groq, APIKey: "gsk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "Rewrite as email.", "build is green")
	require.NoError(t, err)

	assert.Equal(t, "Dear team, the build is green.", out)
	assert.Equal(t, "Bearer gsk-test", auth)
	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Rewrite as email.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "build is green", got.Messages[1].Content)
}

func TestChatProvider_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := llm.New(llm.Config{Provider: llm.OpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "sys", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai chat completion")
}

func TestClaudeProvider(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Summary: ship it."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	p, err := llm.New(llm.Config{Provider: llm.Anthropic, APIKey: "sk-ant-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "Summarize.", "we should ship it")
	require.NoError(t, err)

	assert.Equal(t, "Summary: ship it.", out)
	assert.Equal(t, llm.Anthropic.DefaultModel(), got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Equal(t, "Summarize.", got.System[0].Text)
}
