package search

import "github.com/quarryhq/quarry/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterVectorQuery(matches []core.VectorMatch)
	AfterChunkRetrieval(chunk *core.Chunk)
	VerbatimHit(chunk *core.Chunk)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                        {}
func (n *noopMonitor) AfterVectorQuery(_ []core.VectorMatch) {}
func (n *noopMonitor) AfterChunkRetrieval(_ *core.Chunk)     {}
func (n *noopMonitor) VerbatimHit(_ *core.Chunk)             {}
func (n *noopMonitor) Finish(_ []*Result)                    {}
