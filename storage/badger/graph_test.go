package badger

import (
	"context"
	"testing"

	"github.com/quarryhq/quarry/core"
)

func TestGraphConceptBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	concepts := []core.Concept{
		{
			Id:      core.ConceptID(1, 0, "(entity,kubernetes)"),
			ChunkId: core.ChunkID(1, 0),
			JobId:   1,
			Label:   "kubernetes",
			Kind:    core.ConceptKindEntity,
		},
		{
			Id:      core.ConceptID(1, 0, "(kubernetes,orchestrates,containers)"),
			ChunkId: core.ChunkID(1, 0),
			JobId:   1,
			Label:   "orchestrates",
			Kind:    core.ConceptKindRelation,
			Triple: core.Triple{
				Subject:   "kubernetes",
				Predicate: "orchestrates",
				Object:    "containers",
			},
		},
		{
			Id:      core.ConceptID(1, 1, "(entity,containers)"),
			ChunkId: core.ChunkID(1, 1),
			JobId:   1,
			Label:   "containers",
			Kind:    core.ConceptKindEntity,
		},
	}

	if err := stores.Graph.PutConcepts(ctx, concepts); err != nil {
		t.Fatalf("Failed to put concepts: %v", err)
	}

	listed, err := stores.Graph.ListConcepts(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list concepts: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("Expected 3 concepts, got %d", len(listed))
	}
	// Entities sort before relations.
	if listed[0].Kind != core.ConceptKindEntity || listed[2].Kind != core.ConceptKindRelation {
		t.Fatalf("Expected entities before relations, got %v %v %v",
			listed[0].Kind, listed[1].Kind, listed[2].Kind)
	}

	triples, err := stores.Graph.ListTriples(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list triples: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("Expected 1 triple, got %d", len(triples))
	}
	if triples[0].Subject != "kubernetes" || triples[0].Object != "containers" {
		t.Fatalf("Unexpected triple: %+v", triples[0])
	}
}

func TestGraphDeleteByJob(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	mine := core.Concept{
		Id: 1, ChunkId: 10, JobId: 1,
		Label: "alpha", Kind: core.ConceptKindEntity,
	}
	theirs := core.Concept{
		Id: 2, ChunkId: 20, JobId: 2,
		Label: "beta", Kind: core.ConceptKindEntity,
	}
	if err := stores.Graph.PutConcepts(ctx, []core.Concept{mine, theirs}); err != nil {
		t.Fatalf("Failed to put concepts: %v", err)
	}

	if err := stores.Graph.DeleteByJob(ctx, 1); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	listed, err := stores.Graph.ListConcepts(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list concepts: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("Expected 0 concepts after delete, got %d", len(listed))
	}

	listed, err = stores.Graph.ListConcepts(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list concepts: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("Expected other job untouched, got %d concepts", len(listed))
	}
}
