package adapter

import "context"

// Message is one prior turn handed to the model.
type Message struct {
	Role    string `json:"role"` // "user", "assistant"
	Content string `json:"content"`
}

// ModelInfo describes a model.
type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// ChatRequest is a single stateless completion call. System is sent as the
// provider's system instruction, History follows it in order. A nil
// Temperature leaves the provider default; zero is sent as zero.
type ChatRequest struct {
	Model       string
	System      string
	History     []Message
	Temperature *float64
	MaxTokens   int
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// TokenCounter counts tokens locally, without calling a provider.
type TokenCounter interface {
	Count(model string, messages []Message) int
}

// AIServiceAdapter is the port for LLM chat.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(model string) (ModelInfo, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when the provider has no exact counter).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Chat returns the assistant text and usage as reported by the provider.
	Chat(ctx context.Context, req ChatRequest) (string, Usage, error)
}
