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


package ingestion

import (
	"context"
	"sync"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/core"
)

// extractConcepts fans concept extraction out across the chunks of a job
// and reassembles the results in document order. A failed extraction on any
// chunk fails the stage; extraction yielding zero concepts is not an error.
func (p *Pipeline) extractConcepts(ctx context.Context, jobID core.ID, chunks []core.Chunk) ([]core.Concept, error) {
	extractor := p.provider.ConceptExtractor()

	perChunk := make([][]core.Concept, len(chunks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range chunks {
		chunk := chunks[i]
		idx := i
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			extracted, err := extractor.ExtractConcepts(ctx, chunk.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			perChunk[idx] = convertConcepts(jobID, &chunk, extracted)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Reassemble in sequence order, deduplicating identical concepts that
	// different chunks of the same job produced.
	seen := make(map[core.ID]bool)
	var concepts []core.Concept
	for _, batch := range perChunk {
		for _, concept := range batch {
			if seen[concept.Id] {
				continue
			}
			seen[concept.Id] = true
			concepts = append(concepts, concept)
		}
	}
	return concepts, nil
}

// convertConcepts maps extractor output onto domain concepts with
// deterministic IDs derived from (job, chunk sequence, tuple).
func convertConcepts(jobID core.ID, chunk *core.Chunk, extracted []ai.ExtractedConcept) []core.Concept {
	concepts := make([]core.Concept, 0, len(extracted))
	for _, ec := range extracted {
		concept := core.Concept{
			ChunkId: chunk.Id,
			JobId:   jobID,
			Label:   ec.Label,
		}
		switch ec.Kind {
		case ai.KindRelation:
			concept.Kind = core.ConceptKindRelation
			concept.Triple = core.Triple{
				Subject:   ec.Subject,
				Predicate: ec.Label,
				Object:    ec.Object,
			}
		default:
			concept.Kind = core.ConceptKindEntity
		}
		concept.Id = core.ConceptID(jobID, chunk.SequenceIndex, concept.Tuple())
		concepts = append(concepts, concept)
	}
	return concepts
}
