package ai

import (
	"context"
	"time"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*meteredAI)(nil)

type meteredAI struct {
	inner    adapter.AIServiceAdapter
	provider string
	model    string
}

// NewMeteredAI records latency and token usage of every chat call.
func NewMeteredAI(inner adapter.AIServiceAdapter, provider, defaultModel string) adapter.AIServiceAdapter {
	return &meteredAI{inner: inner, provider: provider, model: defaultModel}
}

func (m *meteredAI) ListModels(ctx context.Context) ([]string, error) {
	return m.inner.ListModels(ctx)
}

func (m *meteredAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return m.inner.GetModelInfo(model)
}

func (m *meteredAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return m.inner.CountTokens(ctx, model, messages)
}

func (m *meteredAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	start := time.Now()
	reply, u, err := m.inner.Chat(ctx, req)
	metrics.ObserveChatUsage(
		m.provider,
		modelOrDefault(req.Model, m.model),
		u.PromptTokens,
		u.CompletionTokens,
		u.TotalTokens,
		int(time.Since(start).Milliseconds()),
		err == nil,
	)
	return reply, u, err
}
