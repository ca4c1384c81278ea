package mock

import "github.com/quarryhq/quarry/ai"

// MockProvider is a test double for ai.AIProvider.
// It bundles mock implementations of all AI services.
type MockProvider struct {
	embedder  *MockEmbedder
	extractor *MockConceptExtractor
	closed    bool
}

// NewMockProvider creates a provider with default mock services.
// Note: Returns concrete type to allow access to the underlying mocks.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		extractor: NewMockConceptExtractor(),
	}
}

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// ConceptExtractor returns the mock extraction service.
func (p *MockProvider) ConceptExtractor() ai.ConceptExtractor {
	return p.extractor
}

// Close marks the provider as closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// MockEmbedder returns the underlying mock for test configuration.
func (p *MockProvider) MockEmbedder() *MockEmbedder {
	return p.embedder
}

// MockExtractor returns the underlying mock for test configuration.
func (p *MockProvider) MockExtractor() *MockConceptExtractor {
	return p.extractor
}
