package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

const noopModel = "noop-ai-model"

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It logs requests instead of calling a provider and answers with a canned reply.
type NoopAIAdapter struct {
	log    *zerolog.Logger
	delay  time.Duration
	tokens *TokenCounter
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopAIAdapter{log: logger, delay: 100 * time.Millisecond, tokens: NewEstimatingCounter()}
}

func (a *NoopAIAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	a.log.Debug().
		Str("model", req.Model).
		Int("history", len(req.History)).
		Int("system_len", len(req.System)).
		Msg("noop-ai chat")

	reply := "This is a noop AI response."
	prompt := a.tokens.Count(noopModel, append([]adapter.Message{{Role: "system", Content: req.System}}, req.History...))
	out := a.tokens.Count(noopModel, []adapter.Message{{Role: "assistant", Content: reply}})
	return reply, adapter.Usage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return a.tokens.Count(modelOrDefault(model, noopModel), messages), nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        noopModel,
		Description: "Noop AI model for testing",
		MaxTokens:   1024,
		Supports:    []string{"chat"},
	}, nil
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{noopModel}, nil
}
