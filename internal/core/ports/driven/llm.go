// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides chat completion for answering queries.
// This is an optional service - when nil, queries are disabled.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini)
//   - Anthropic (Claude)
//   - Gemini
//   - Ollama (local models)
//
// Provider failures are returned as *domain.ProviderError.
type LLMService interface {
	// Complete answers a single system + user prompt pair.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Chat conducts a multi-turn conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	// SystemPrompt is the instruction that frames the answer.
	SystemPrompt string

	// UserPrompt is the user message.
	UserPrompt string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// Messages converts the request into a chat transcript.
func (r CompletionRequest) Messages() []ChatMessage {
	msgs := make([]ChatMessage, 0, 2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: RoleSystem, Content: r.SystemPrompt})
	}
	return append(msgs, ChatMessage{Role: RoleUser, Content: r.UserPrompt})
}

// Options returns the chat options of the request.
func (r CompletionRequest) Options() ChatOptions {
	return ChatOptions{MaxTokens: r.MaxTokens, Temperature: r.Temperature}
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
