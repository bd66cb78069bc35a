// Package gatewaytest provides in-memory gateways for tests.
package gatewaytest

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/gateway"
)

// MockEmbedder is a mock implementation of gateway.Embedder. Without an
// EmbedFunc it returns a deterministic vector derived from the text.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return HashVector(text, 8), nil
}

// Calls returns the texts embedded so far.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockGenerator is a mock implementation of gateway.Generator. Without a
// GenerateFunc it answers "ok".
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, p gateway.Prompt) (string, error)

	mu      sync.Mutex
	prompts []gateway.Prompt
}

func (m *MockGenerator) Generate(ctx context.Context, p gateway.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, p)
	}
	return "ok", nil
}

// Prompts returns every prompt received so far.
func (m *MockGenerator) Prompts() []gateway.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.Prompt(nil), m.prompts...)
}

// HashVector is a stable pseudo-embedding of length dim.
func HashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000)/1000 + 0.001
	}
	return v
}

var (
	_ gateway.Embedder  = (*MockEmbedder)(nil)
	_ gateway.Generator = (*MockGenerator)(nil)
)
