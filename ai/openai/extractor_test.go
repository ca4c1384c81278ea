package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/quarryhq/quarry/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestRepairJSONMissingKeyQuotes(t *testing.T) {
	in := `{label": "go", type": "entity", "importance": 8}`

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(repairJSON(in)), &m))
	assert.Equal(t, "go", m["label"])
	assert.Equal(t, "entity", m["type"])
	assert.Equal(t, float64(8), m["importance"])
}

func TestRepairJSONLeavesValidInputAlone(t *testing.T) {
	in := `{"entities": [{"label": "badger", "importance": 9}], "relations": []}`
	assert.Equal(t, in, repairJSON(in))
}

func TestRepairJSONIgnoresBareValues(t *testing.T) {
	in := `{"flag": true, "n": 5, "s": "a, b"}`
	assert.Equal(t, in, repairJSON(in))
}

// stubModel returns a canned response without touching the network.
type stubModel struct {
	response string
}

func (s stubModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.response}},
	}, nil
}

func (s stubModel) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return s.response, nil
}

func TestExtractConceptsRepairsMalformedResponse(t *testing.T) {
	// Opening quotes missing on several keys, as seen from small local
	// models. The extractor must still parse this without re-prompting.
	e := &ConceptExtractor{
		client: stubModel{response: `{
			entities": [
				{label": "kubernetes", type": "technology", "importance": 9},
				{"label": "containers", "type": "technology", importance": 8}
			],
			"relations": [
				{subject": "kubernetes", "predicate": "orchestrates", object": "containers", "importance": 9}
			]
		}`},
		minImportance: 5,
		logger:        slog.Default(),
	}

	concepts, err := e.ExtractConcepts(context.Background(), "kubernetes orchestrates containers")
	require.NoError(t, err)
	require.Len(t, concepts, 3)

	labels := make(map[string]ai.ExtractedKind, len(concepts))
	for _, c := range concepts {
		labels[c.Label] = c.Kind
	}
	assert.Equal(t, ai.KindEntity, labels["kubernetes"])
	assert.Equal(t, ai.KindEntity, labels["containers"])
	assert.Equal(t, ai.KindRelation, labels["orchestrates"])
}
