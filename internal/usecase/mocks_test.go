// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
)

// memSessionRepo is a small in-memory implementation used by unit tests.
type memSessionRepo struct {
	mu      sync.Mutex
	store   map[string]*model.CareerSession
	saves   int
	saveErr error // used by tests to simulate save failures
	findErr error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[string]*model.CareerSession)}
}

func (m *memSessionRepo) FindByID(ctx context.Context, id string) (*model.CareerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memSessionRepo) Save(ctx context.Context, s *model.CareerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	var stored int64
	if cur, ok := m.store[s.ID]; ok {
		stored = cur.Version
	}
	if stored != s.Version {
		return domain.ErrConflict
	}
	s.Version++
	m.store[s.ID] = s.Clone()
	m.saves++
	return nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memSessionRepo) get(id string) *model.CareerSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id]
}

// fakeAI records requests and answers with reply (or err).
type fakeAI struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	requests []adapter.ChatRequest
	other    int // calls to anything but Chat
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	f.touch()
	return []string{"gpt-4"}, nil
}

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	f.touch()
	return adapter.ModelInfo{Name: model}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	f.touch()
	return wordCounter{}.Count(model, messages), nil
}

func (f *fakeAI) touch() {
	f.mu.Lock()
	f.other++
	f.mu.Unlock()
}

// totalCalls counts every adapter call, Chat included.
func (f *fakeAI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests) + f.other
}

// wordCounter is a local TokenCounter counting whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(model string, messages []adapter.Message) int {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n
}

func (f *fakeAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply, err, delay := f.reply, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", adapter.Usage{}, ctx.Err()
		}
	}
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if reply == "" {
		reply = "ok"
	}
	return reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13}, nil
}

func (f *fakeAI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAI) last() adapter.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}
