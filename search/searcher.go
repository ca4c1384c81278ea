package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// DefaultMinScore is the similarity floor below which vector matches are
// discarded.
const DefaultMinScore = 0.60

// verbatimBoost is added when every query word appears in the chunk.
const verbatimBoost = 0.3

// Result is a single ranked search hit.
type Result struct {
	Chunk *core.Chunk
	Score float32
}

// Searcher ranks indexed chunks against a free-text query.
type Searcher struct {
	vectors   storage.VectorStore
	documents storage.DocumentStore
	embedder  ai.Embedder
	minScore  float32
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore sets the similarity floor for vector matches.
// Default is DefaultMinScore.
func WithMinScore(minScore float32) Option {
	return func(s *Searcher) error {
		s.minScore = minScore
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	vectors storage.VectorStore,
	documents storage.DocumentStore,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		vectors:   vectors,
		documents: documents,
		embedder:  provider.Embedder(),
		minScore:  DefaultMinScore,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for chunks similar to the query across all jobs.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*Result, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, storage.VectorFilter{}, nil)
}

// FindSimilarInJob restricts the search to chunks of a single job.
func (s *Searcher) FindSimilarInJob(ctx context.Context, query string, maxHits int, jobID core.ID) ([]*Result, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, storage.VectorFilter{JobId: jobID}, nil)
}

// FindSimilarWithMonitor searches for chunks matching the query and filter.
// The monitor receives callbacks at each stage of the search process.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, filter storage.VectorFilter, monitor SearchMonitor) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.vectors.Query(ctx, embedding, maxHits, filter)
	if err != nil {
		s.logger.Error("error querying vector store", "err", err)
		return nil, err
	}
	monitor.AfterVectorQuery(matches)

	results := make([]*Result, 0, len(matches))
	for _, match := range matches {
		if match.Score < s.minScore {
			continue
		}

		chunk, err := s.documents.GetChunk(ctx, match.ChunkId)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// The vector outlived its chunk; stale entry, skip it.
				s.logger.Warn("vector match without chunk", "chunk_id", match.ChunkId)
				continue
			}
			return nil, err
		}
		if !chunk.Indexed {
			// Chunks from a failed vector write are visible but not
			// yet part of the query surface.
			continue
		}
		monitor.AfterChunkRetrieval(chunk)

		score := match.Score
		if containsAllQueryWords(chunk.Text, query) {
			score += verbatimBoost
			monitor.VerbatimHit(chunk)
		}

		results = append(results, &Result{Chunk: chunk, Score: score})
	}

	// The verbatim boost can reorder hits relative to raw similarity.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
