package llm

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const chatTemperature = 0.3

// chat talks to OpenAI and to the OpenAI-compatible Groq and Ollama APIs.
type chat struct {
	provider ProviderID
	client   oai.Client
	model    string
}

func newChat(cfg Config) *chat {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &chat{
		provider: cfg.Provider,
		client:   oai.NewClient(opts...),
		model:    cfg.Model,
	}
}

func (c *chat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: param.NewOpt(chatTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(string(c.provider) + ": empty choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}
