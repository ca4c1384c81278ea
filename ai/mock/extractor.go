package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/quarryhq/quarry/ai"
)

// MockConceptExtractor is a test double for ai.ConceptExtractor.
// It allows custom behavior injection via function fields.
type MockConceptExtractor struct {
	// ExtractConceptsFunc is called by ExtractConcepts if set.
	// If nil, uses default deterministic behavior.
	ExtractConceptsFunc func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)

	mu        sync.Mutex
	callCount int
}

// NewMockConceptExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockConceptExtractor() *MockConceptExtractor {
	return &MockConceptExtractor{}
}

// ExtractConcepts returns deterministic concepts derived from the text.
// The default behavior emits one entity per distinct word longer than five
// characters (capped at three) plus a single relation linking the first two,
// so tests get both concept kinds without an LLM.
func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractConceptsFunc != nil {
		return m.ExtractConceptsFunc(ctx, text)
	}

	seen := make(map[string]bool)
	var labels []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) <= 5 || seen[word] {
			continue
		}
		seen[word] = true
		labels = append(labels, word)
		if len(labels) == 3 {
			break
		}
	}

	concepts := make([]ai.ExtractedConcept, 0, len(labels)+1)
	for _, label := range labels {
		concepts = append(concepts, ai.ExtractedConcept{
			Label:      label,
			Kind:       ai.KindEntity,
			Importance: 8,
		})
	}
	if len(labels) >= 2 {
		concepts = append(concepts, ai.ExtractedConcept{
			Label:      "relates to",
			Kind:       ai.KindRelation,
			Subject:    labels[0],
			Object:     labels[1],
			Importance: 7,
		})
	}
	return concepts, nil
}

// CallCount returns the number of times ExtractConcepts was called.
func (m *MockConceptExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom function.
func (m *MockConceptExtractor) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.mu.Unlock()
	m.ExtractConceptsFunc = nil
}
