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


package chunker

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/quarryhq/quarry/core"
)

const (
	// DefaultTokenBudget is the maximum token count of a regular chunk.
	DefaultTokenBudget = 512
	// DefaultOverlap is the token budget carried from the tail of a closed
	// chunk into the start of the next one.
	DefaultOverlap = 50
)

// SemanticChunker splits text into token-bounded chunks along paragraph and
// sentence boundaries.
type SemanticChunker struct {
	counter TokenCounter
	budget  int
	overlap int
	logger  *slog.Logger
}

// Option configures a SemanticChunker.
type Option func(*SemanticChunker)

// WithTokenBudget sets the maximum token count per chunk.
func WithTokenBudget(budget int) Option {
	return func(c *SemanticChunker) {
		if budget > 0 {
			c.budget = budget
		}
	}
}

// WithOverlap sets the token overlap carried between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(c *SemanticChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given token counter.
func New(counter TokenCounter, opts ...Option) *SemanticChunker {
	c := &SemanticChunker{
		counter: counter,
		budget:  DefaultTokenBudget,
		overlap: DefaultOverlap,
		logger:  slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.budget {
		c.overlap = c.budget / 4
	}
	return c
}

// unit is a contiguous byte range of the source text, typically one
// sentence including its trailing whitespace. Units tile the whole text.
type unit struct {
	start    int
	end      int
	tokens   int
	degraded bool
}

// Chunk splits text into ordered chunks owned by jobID. Chunk IDs are
// derived from (jobID, sequence index) so re-running overwrites rather
// than duplicates.
func (c *SemanticChunker) Chunk(jobID core.ID, text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.Permanent(core.ErrEmptyText)
	}

	units := c.splitUnits(text)

	var chunks []core.Chunk
	var current []unit
	currentTokens := 0

	closeChunk := func() {
		if len(current) == 0 {
			return
		}
		start := current[0].start
		end := current[len(current)-1].end
		chunkText := text[start:end]
		degraded := false
		for _, u := range current {
			if u.degraded {
				degraded = true
				break
			}
		}
		seq := len(chunks)
		chunks = append(chunks, core.Chunk{
			Id:            core.ChunkID(jobID, seq),
			JobId:         jobID,
			SequenceIndex: seq,
			Text:          chunkText,
			TokenCount:    c.counter.Count(chunkText),
			StartOffset:   start,
			EndOffset:     end,
			Degraded:      degraded,
		})

		// Carry a tail of units into the next chunk. The first unit never
		// joins the tail, so each chunk always advances past its predecessor.
		var tail []unit
		tailTokens := 0
		for i := len(current) - 1; i > 0 && c.overlap > 0; i-- {
			u := current[i]
			if tailTokens+u.tokens > c.overlap {
				break
			}
			tailTokens += u.tokens
			tail = append([]unit{u}, tail...)
		}
		current = tail
		currentTokens = tailTokens
	}

	for _, u := range units {
		if currentTokens+u.tokens > c.budget && len(current) > 0 {
			closeChunk()
		}
		// A carried tail can leave no room for the incoming unit. The tail
		// text already lives in the previous chunk, so drop it instead of
		// letting the new chunk exceed the budget.
		if currentTokens+u.tokens > c.budget && len(current) > 0 {
			current = nil
			currentTokens = 0
		}
		current = append(current, u)
		currentTokens += u.tokens
	}
	closeChunk()

	return chunks, nil
}

// splitUnits cuts text into sentence-level units that tile the input.
// Paragraph breaks are always unit boundaries; sentences that alone exceed
// the token budget are hard-cut at word boundaries and marked degraded.
func (c *SemanticChunker) splitUnits(text string) []unit {
	boundaries := sentenceBoundaries(text)

	var units []unit
	prev := 0
	for _, b := range boundaries {
		if b <= prev {
			continue
		}
		u := unit{start: prev, end: b}
		u.tokens = c.counter.Count(text[u.start:u.end])
		if u.tokens > c.budget {
			c.logger.Debug("hard-cutting oversized sentence",
				"start", u.start, "end", u.end, "tokens", u.tokens)
			units = append(units, c.hardCut(text, u)...)
		} else {
			units = append(units, u)
		}
		prev = b
	}
	return units
}

// sentenceBoundaries returns ascending cut positions: after sentence-ending
// punctuation followed by whitespace, after newline runs, and at the end of
// the text. Trailing whitespace belongs to the preceding unit so the units
// tile the input exactly.
func sentenceBoundaries(text string) []int {
	var boundaries []int
	i := 0
	for i < len(text) {
		ch := text[i]
		if ch == '.' || ch == '!' || ch == '?' || ch == '\n' {
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j > i+1 || ch == '\n' || j == len(text) {
				boundaries = append(boundaries, j)
			}
			i = j
			continue
		}
		i++
	}
	if len(boundaries) == 0 || boundaries[len(boundaries)-1] != len(text) {
		boundaries = append(boundaries, len(text))
	}
	return boundaries
}

// hardCut splits one oversized unit at word boundaries, keeping every piece
// within the token budget where possible. A single word larger than the
// budget is cut at rune boundaries. All pieces are marked degraded.
func (c *SemanticChunker) hardCut(text string, u unit) []unit {
	var pieces []unit
	pos := u.start
	pieceStart := u.start
	pieceTokens := 0

	flush := func(end int) {
		if end <= pieceStart {
			return
		}
		pieces = append(pieces, unit{
			start:    pieceStart,
			end:      end,
			tokens:   c.counter.Count(text[pieceStart:end]),
			degraded: true,
		})
		pieceStart = end
		pieceTokens = 0
	}

	for pos < u.end {
		wordEnd := pos
		for wordEnd < u.end && text[wordEnd] != ' ' {
			wordEnd++
		}
		for wordEnd < u.end && text[wordEnd] == ' ' {
			wordEnd++
		}
		wordTokens := c.counter.Count(text[pos:wordEnd])
		if wordTokens > c.budget {
			// Pathological single word; cut it at rune boundaries.
			flush(pos)
			for pos < wordEnd {
				end := pos
				for end < wordEnd && end-pos < 4*c.budget {
					_, size := utf8.DecodeRuneInString(text[end:wordEnd])
					end += size
				}
				pieceStart = pos
				flush(end)
				pos = end
			}
			continue
		}
		if pieceTokens+wordTokens > c.budget && pos > pieceStart {
			flush(pos)
		}
		pieceTokens += wordTokens
		pos = wordEnd
	}
	flush(u.end)
	return pieces
}
