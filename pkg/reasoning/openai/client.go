package openai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/metacoglab/dreammem-go/pkg/reasoning"
)

// Client is an OpenAI reasoning backend.
// It implements the reasoning.Backend interface on top of the chat completions
// API. Setting BaseURL points it at any OpenAI-compatible server, which is how
// local runtimes such as LM Studio are used for consolidation.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI reasoning backend.
// APIKey: API key (required for the hosted API; local servers accept any value)
// Model: Model name to use, defaults to "gpt-4o-mini"
// BaseURL: API base URL, defaults to the OpenAI official address
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new OpenAI reasoning backend.
//
// Args:
//   - cfg: Configuration containing APIKey, Model, and BaseURL
//
// Returns:
//   - *Client: Backend instance
//   - error: Returns an error if the configuration is invalid or initialization fails
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(config)

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// Complete produces a completion for a single prompt.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - prompt: User input prompt
//   - opts: Optional completion parameters (temperature, max_tokens, top_p, etc.)
//
// Returns:
//   - string: Completion text content
//   - error: Returns an error if the call fails
func (c *Client) Complete(ctx context.Context, prompt string, opts ...reasoning.CompleteOption) (string, error) {
	messages := []reasoning.Message{
		{Role: "user", Content: prompt},
	}
	return c.CompleteWithMessages(ctx, messages, opts...)
}

// CompleteWithMessages produces a completion from message history.
// Accepts complete message history (including system, user, and assistant messages).
func (c *Client) CompleteWithMessages(ctx context.Context, messages []reasoning.Message, opts ...reasoning.CompleteOption) (string, error) {
	options := reasoning.ApplyCompleteOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("completion failed: no choices returned from API")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
