package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrGeneration is returned when the model fails to produce an answer.
// Search treats this as non-fatal and falls back to sources-only output.
var ErrGeneration = errors.New("answer generation failed")

// Generator produces free-form text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint. A slow or
// partial answer is acceptable to surface, so calls are not retried.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

// Generate runs a single chat completion over the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
