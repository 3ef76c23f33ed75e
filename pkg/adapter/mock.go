package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

// Call records one mock invocation.
type Call struct {
	BackendID string
	Prompt    string
}

// MockInvoker returns scripted responses for local runs and tests.
// Responses are queued per backend id and consumed in order; backends
// without a queue get the default response.
type MockInvoker struct {
	mu              sync.Mutex
	responses       map[string][]string
	errs            map[string]error
	defaultResponse string
	inputTokens     int
	outputTokens    int
	calls           []Call
}

// NewMockInvoker creates a mock invoker with a default response.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		responses:       make(map[string][]string),
		errs:            make(map[string]error),
		defaultResponse: "mock response:",
		inputTokens:     100,
		outputTokens:    50,
	}
}

// Queue appends scripted responses for a backend.
func (m *MockInvoker) Queue(backendID string, responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[backendID] = append(m.responses[backendID], responses...)
}

// Fail makes every invocation of a backend return err.
func (m *MockInvoker) Fail(backendID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[backendID] = err
}

// SetUsage fixes the token usage reported for every call.
func (m *MockInvoker) SetUsage(inputTokens, outputTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputTokens = inputTokens
	m.outputTokens = outputTokens
}

// Calls returns every recorded invocation in order.
func (m *MockInvoker) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times a backend was invoked.
func (m *MockInvoker) CallCount(backendID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.BackendID == backendID {
			n++
		}
	}
	return n
}

// Name returns the provider label.
func (m *MockInvoker) Name() string {
	return "mock"
}

// Invoke returns the next scripted response for the backend, honoring
// context cancellation first.
func (m *MockInvoker) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{BackendID: backend.ID, Prompt: prompt})

	if err := m.errs[backend.ID]; err != nil {
		return nil, err
	}

	content := fmt.Sprintf("%s\n%s", m.defaultResponse, prompt)
	if queue := m.responses[backend.ID]; len(queue) > 0 {
		content = queue[0]
		m.responses[backend.ID] = queue[1:]
	}

	return NewResult(content, m.inputTokens, m.outputTokens, backend), nil
}
