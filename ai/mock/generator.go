package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docqa/ai"
)

// DefaultAnswer is returned by MockGenerator when no GenerateFunc is set.
const DefaultAnswer = "According to the policy, the answer is stated in the evidence [1]."

// MockGenerator is a test double for ai.Generator.
// It records every request so tests can inspect the prompt.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, req ai.Request) (*ai.Generation, error)

	mu       sync.Mutex
	requests []ai.Request
}

// NewMockGenerator creates a mock generator that answers with DefaultAnswer.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the request and returns the configured result.
func (m *MockGenerator) Generate(ctx context.Context, req ai.Request) (*ai.Generation, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &ai.Generation{
		Text:       DefaultAnswer,
		TokensUsed: (len(req.System) + len(req.Prompt) + len(DefaultAnswer)) / 4,
	}, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockGenerator) Requests() []ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or false if none was made.
func (m *MockGenerator) LastRequest() (ai.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Reset clears recorded requests and custom behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.GenerateFunc = nil
}
