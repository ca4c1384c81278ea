package search

import (
	"context"
	"testing"

	"github.com/quarryhq/quarry/ai/mock"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
	"github.com/quarryhq/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	stores   *storage.Stores
	provider *mock.MockProvider
	searcher *Searcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	provider := mock.NewMockProvider()
	searcher, err := NewSearcher(stores.Vectors, stores.Documents, provider, opts...)
	require.NoError(t, err)

	return &fixture{stores: stores, provider: provider, searcher: searcher}
}

// indexChunks stores chunks for a job together with their mock embeddings,
// marked indexed the way a completed ingestion run leaves them.
func (f *fixture) indexChunks(t *testing.T, jobID core.ID, texts ...string) []core.Chunk {
	t.Helper()
	ctx := context.Background()

	chunks := make([]core.Chunk, len(texts))
	embeddings := make([]core.Embedding, len(texts))
	offset := 0
	for i, text := range texts {
		chunks[i] = core.Chunk{
			Id:            core.ChunkID(jobID, i),
			JobId:         jobID,
			SequenceIndex: i,
			Text:          text,
			TokenCount:    len(text),
			StartOffset:   offset,
			EndOffset:     offset + len(text),
			Indexed:       true,
		}
		offset += len(text)

		vector, err := f.provider.Embedder().EmbedText(ctx, text)
		require.NoError(t, err)
		embeddings[i] = core.Embedding{
			ChunkId:      chunks[i].Id,
			JobId:        jobID,
			Vector:       vector,
			ModelVersion: "v1",
		}
	}

	require.NoError(t, f.stores.Documents.PutChunks(ctx, chunks))
	require.NoError(t, f.stores.Vectors.Upsert(ctx, embeddings))
	return chunks
}

func TestFindSimilarExactTextRanksFirst(t *testing.T) {
	f := newFixture(t)
	f.indexChunks(t, 1,
		"kubernetes schedules pods onto worker nodes",
		"postgres stores relational data on disk",
		"grafana renders dashboards from metrics")

	results, err := f.searcher.FindSimilar(context.Background(),
		"kubernetes schedules pods onto worker nodes", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The identical chunk scores 1.0 similarity plus the verbatim boost.
	top := results[0]
	assert.Equal(t, "kubernetes schedules pods onto worker nodes", top.Chunk.Text)
	assert.InDelta(t, 1.0+verbatimBoost, top.Score, 0.01)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestFindSimilarInJobFiltersOtherJobs(t *testing.T) {
	f := newFixture(t, WithMinScore(0))
	f.indexChunks(t, 1, "shared topic one")
	f.indexChunks(t, 2, "shared topic two")

	results, err := f.searcher.FindSimilarInJob(context.Background(), "shared topic", 10, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, result := range results {
		assert.Equal(t, core.ID(2), result.Chunk.JobId)
	}
}

func TestFindSimilarSkipsUnindexedChunks(t *testing.T) {
	f := newFixture(t, WithMinScore(0))
	ctx := context.Background()
	f.indexChunks(t, 1, "visible chunk text")

	// Simulate a failed vector write compensation: chunks present but not
	// part of the query surface.
	require.NoError(t, f.stores.Documents.MarkIndexed(ctx, 1, false))

	results, err := f.searcher.FindSimilar(ctx, "visible chunk text", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilarMinScoreFiltersWeakMatches(t *testing.T) {
	f := newFixture(t, WithMinScore(0.99))
	f.indexChunks(t, 1,
		"alpha beta gamma delta",
		"completely unrelated sentence about cooking")

	results, err := f.searcher.FindSimilar(context.Background(), "alpha beta gamma delta", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha beta gamma delta", results[0].Chunk.Text)
}

func TestFindSimilarSkipsStaleVectors(t *testing.T) {
	f := newFixture(t, WithMinScore(0))
	ctx := context.Background()
	f.indexChunks(t, 1, "orphaned vector text")
	require.NoError(t, f.stores.Documents.DeleteChunks(ctx, 1))

	results, err := f.searcher.FindSimilar(ctx, "orphaned vector text", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilarEmptyQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.searcher.FindSimilar(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindSimilarMonitorCallbacks(t *testing.T) {
	f := newFixture(t)
	f.indexChunks(t, 1, "observed chunk text")

	m := &recordingMonitor{}
	results, err := f.searcher.FindSimilarWithMonitor(context.Background(),
		"observed chunk text", 5, storage.VectorFilter{}, m)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "observed chunk text", m.query)
	assert.NotEmpty(t, m.matches)
	assert.Equal(t, 1, m.verbatimHits)
	assert.Len(t, m.finished, len(results))
}

type recordingMonitor struct {
	query        string
	matches      []core.VectorMatch
	verbatimHits int
	finished     []*Result
}

func (m *recordingMonitor) Start(query string)                       { m.query = query }
func (m *recordingMonitor) AfterVectorQuery(ms []core.VectorMatch)   { m.matches = ms }
func (m *recordingMonitor) AfterChunkRetrieval(_ *core.Chunk)        {}
func (m *recordingMonitor) VerbatimHit(_ *core.Chunk)                { m.verbatimHits++ }
func (m *recordingMonitor) Finish(results []*Result)                 { m.finished = results }

func TestContainsAllQueryWords(t *testing.T) {
	assert.True(t, containsAllQueryWords("The Quick Brown Fox jumps!", "quick fox"))
	assert.False(t, containsAllQueryWords("the quick brown fox", "quick wolf"))
	// Stop-word-only queries never count as verbatim matches.
	assert.False(t, containsAllQueryWords("the and of", "the and"))
}
