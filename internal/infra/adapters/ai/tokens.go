package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
)

const fallbackEncoding = "cl100k_base"

// per-message framing overhead of the chat format
const tokensPerMessage = 3

var _ adapter.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts prompt tokens with tiktoken. Encodings are resolved once
// per model; when none can be loaded it estimates four bytes per token.
type TokenCounter struct {
	mu       sync.Mutex
	encs     map[string]*tiktoken.Tiktoken
	estimate bool
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encs: make(map[string]*tiktoken.Tiktoken)}
}

// NewEstimatingCounter never loads an encoding.
func NewEstimatingCounter() *TokenCounter {
	return &TokenCounter{encs: make(map[string]*tiktoken.Tiktoken), estimate: true}
}

func (t *TokenCounter) Count(model string, messages []adapter.Message) int {
	enc := t.encoding(model)
	n := 0
	for _, m := range messages {
		n += tokensPerMessage
		if enc == nil {
			n += estimate(m.Role) + estimate(m.Content)
			continue
		}
		n += len(enc.Encode(m.Role, nil, nil)) + len(enc.Encode(m.Content, nil, nil))
	}
	return n
}

// Warm resolves the encoding for model ahead of the first Count, since
// tiktoken may fetch it over the network. It reports whether an exact
// encoding is available.
func (t *TokenCounter) Warm(model string) bool {
	return t.encoding(model) != nil
}

func (t *TokenCounter) encoding(model string) *tiktoken.Tiktoken {
	if t.estimate {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if enc, ok := t.encs[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		enc = nil
	}
	t.encs[model] = enc
	return enc
}

func estimate(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
