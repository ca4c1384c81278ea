package ai

import "context"

// DisabledExtractor implements ConceptExtractor as a pass-through that
// never yields concepts. It is selected through configuration when concept
// extraction is turned off, so callers compose the pipeline the same way
// regardless of the setting.
type DisabledExtractor struct{}

var _ ConceptExtractor = (*DisabledExtractor)(nil)

// NewDisabledExtractor creates the no-op extractor variant.
func NewDisabledExtractor() ConceptExtractor {
	return &DisabledExtractor{}
}

// ExtractConcepts always returns an empty slice.
func (e *DisabledExtractor) ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error) {
	return []ExtractedConcept{}, nil
}
