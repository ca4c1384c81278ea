package transcribe

import (
	"context"
	"sync"
)

// MockClient is a test double for Client with injectable behavior.
type MockClient struct {
	// SubmitJobFunc is called by SubmitJob if set.
	SubmitJobFunc func(ctx context.Context, sourceRef string) (string, error)

	// PollJobFunc is called by PollJob if set.
	PollJobFunc func(ctx context.Context, externalID string) (*PollResult, error)

	mu          sync.Mutex
	submitCount int
	pollCount   int
}

// NewMockClient creates a mock that immediately reports every job ready
// with a canned transcript.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SubmitJob(ctx context.Context, sourceRef string) (string, error) {
	m.mu.Lock()
	m.submitCount++
	m.mu.Unlock()

	if m.SubmitJobFunc != nil {
		return m.SubmitJobFunc(ctx, sourceRef)
	}
	return "ext-" + sourceRef, nil
}

func (m *MockClient) PollJob(ctx context.Context, externalID string) (*PollResult, error) {
	m.mu.Lock()
	m.pollCount++
	m.mu.Unlock()

	if m.PollJobFunc != nil {
		return m.PollJobFunc(ctx, externalID)
	}
	return &PollResult{Status: StatusReady, Text: "transcript of " + externalID}, nil
}

// SubmitCount returns how many times SubmitJob was called.
func (m *MockClient) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCount
}

// PollCount returns how many times PollJob was called.
func (m *MockClient) PollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCount
}
