// Package reasoning provides interfaces for the reasoning backends that
// drive memory consolidation.
//
// It defines the Backend interface that all reasoning implementations must
// satisfy, along with message types and completion options. A backend is
// invoked once per consolidation cycle with the full reflection prompt.
package reasoning

import "context"

// Backend defines the interface for reasoning backends.
//
// Implementations wrap a language model endpoint (OpenAI, LM Studio, or any
// other OpenAI-compatible server).
type Backend interface {
	// Complete produces a completion for a single prompt.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - prompt: The input prompt text
	//   - opts: Optional completion parameters (temperature, max tokens, etc.)
	//
	// Returns the completion text and any error. Callers bound the call
	// with a deadline on ctx; a context.DeadlineExceeded from the backend
	// means the configured reasoning timeout elapsed.
	Complete(ctx context.Context, prompt string, opts ...CompleteOption) (string, error)

	// CompleteWithMessages produces a completion from a conversation
	// history (system, user, assistant messages).
	CompleteWithMessages(ctx context.Context, messages []Message, opts ...CompleteOption) (string, error)

	// Close closes the backend and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// CompleteOptions contains options for a completion call.
type CompleteOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string
}

// CompleteOption is a function type for configuring completion options.
type CompleteOption func(*CompleteOptions)

// WithTemperature sets the temperature for the completion.
//
// Temperature controls randomness: 0.0 = deterministic, 2.0 = very random.
func WithTemperature(temp float64) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.TopP = topP
	}
}

// ApplyCompleteOptions applies a slice of CompleteOption functions to create CompleteOptions.
//
// This is a helper function used internally by backend implementations.
// Default values: Temperature=0.7, MaxTokens=2000, TopP=1.0.
func ApplyCompleteOptions(opts []CompleteOption) *CompleteOptions {
	options := &CompleteOptions{
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
