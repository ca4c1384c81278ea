// Package chunker splits normalized source text into token-bounded chunks.
//
// The splitter prefers paragraph breaks, then sentence breaks, and hard-cuts
// only when a single sentence alone exceeds the token budget (those chunks
// are flagged degraded). Every chunk is an exact byte range of the input, so
// concatenating chunks in sequence order, minus the configured overlap,
// reconstructs the original text.
package chunker
