package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/alexa-skills/internal/ports"
)

// MockTextGenerator is a mock implementation of ports.TextGenerator that
// records every request it receives.
type MockTextGenerator struct {
	GenerateFunc func(ctx context.Context, req ports.GenerateRequest) (string, error)

	mu    sync.Mutex
	calls []ports.GenerateRequest
}

func (m *MockTextGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

// Calls returns the requests received so far.
func (m *MockTextGenerator) Calls() []ports.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockTextGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
