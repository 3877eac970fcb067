package llm

import "context"

// MockProvider is a test double returning canned responses in order. Once the
// scripted responses run out it keeps returning the last one.
type MockProvider struct {
	ProviderName string
	Responses    []string
	Err          error

	Calls        int
	LastRequest  *CompletionRequest
	LastMessages []Message
}

// NewMockProvider creates a MockProvider that returns the given responses
func NewMockProvider(name string, responses ...string) *MockProvider {
	return &MockProvider{ProviderName: name, Responses: responses}
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.Calls++
	m.LastRequest = &req
	m.LastMessages = req.Messages

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
