// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateJob validates a Job according to domain rules.
//
// Validation rules:
//   - SourceRef must not be empty
//   - State must be a known JobState
//
// NOT validated (populated by the coordinator):
//   - ExternalJobId (empty until an external job is submitted)
//   - Reason/LastError (empty until a terminal transition)
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if job.SourceRef == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptySourceRef)
	}
	if err := ValidateJobState(job.State); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return nil
}

// ValidateJobState validates that a JobState has a known value.
func ValidateJobState(state JobState) error {
	if _, ok := jobStateNames[state]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidJobState, int(state))
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - SequenceIndex must not be negative
//   - Offsets must describe a non-empty, well-ordered span
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}
	if chunk.SequenceIndex < 0 {
		return fmt.Errorf("%w: negative sequence index %d", ErrInvalidChunk, chunk.SequenceIndex)
	}
	if chunk.StartOffset < 0 || chunk.EndOffset <= chunk.StartOffset {
		return fmt.Errorf("%w: bad offsets [%d,%d)", ErrInvalidChunk, chunk.StartOffset, chunk.EndOffset)
	}
	return nil
}

// ValidateConcept validates a Concept according to domain rules.
//
// Validation rules:
//   - Label must not be empty
//   - Relations must carry a complete subject-predicate-object triple
func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}
	if concept.Label == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyLabel)
	}
	if concept.Kind != ConceptKindEntity && concept.Kind != ConceptKindRelation {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidConcept, int(concept.Kind))
	}
	if concept.Kind == ConceptKindRelation {
		t := concept.Triple
		if t.Subject == "" || t.Predicate == "" || t.Object == "" {
			return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrIncompleteTriple)
		}
	}
	return nil
}

// ValidateEmbedding validates an Embedding against the expected model
// dimension. A dimension of 0 disables the length check.
func ValidateEmbedding(embedding *Embedding, dimension int) error {
	if embedding == nil {
		return fmt.Errorf("embedding is nil")
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrVectorLength)
	}
	if dimension > 0 && len(embedding.Vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrVectorLength, len(embedding.Vector), dimension)
	}
	return nil
}
