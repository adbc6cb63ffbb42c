package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a lightweight in-memory Provider useful for tests,
// examples and dry runs without credentials. Canned responses are matched by
// prompt; unmatched prompts get a deterministic echo.
type MockProvider struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	failures  []error // consumed front-to-back before responding
	calls     int
	closed    bool
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(model string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: model, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith queues errors returned by the next Complete calls, one per call,
// before canned responses resume. Useful for scripting retry scenarios.
func (m *MockProvider) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls returns how many Complete calls the mock has served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Response{}, fmt.Errorf("mock provider closed")
	}

	m.calls++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return Response{}, err
	}

	text, ok := m.responses[req.Prompt]
	if !ok {
		text = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}

	return Response{Text: text, FinishReason: "stop"}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }

// Close implements Closer.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
