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

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every persisted record. Maintained by hand on top
// of the mus-go primitive serializers; field order is part of the storage
// format and must not change without a migration.

// time values are persisted as microsecond Unix timestamps.
// The zero time is encoded as 0 so it round-trips exactly.

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return varint.Int64.Marshal(0, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if v == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(t.UnixMicro())
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v := make([]float32, length)
	for i := 0; i < length; i++ {
		bits, m, err := varint.Uint32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		v[i] = math.Float32frombits(bits)
	}
	return v, n, nil
}

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

// idMUS serializes IDs.
type idMUS struct{}

// IDMUS is the serializer for ID values.
var IDMUS = idMUS{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

// jobMUS serializes Jobs.
type jobMUS struct{}

// JobMUS is the serializer for Job values.
var JobMUS = jobMUS{}

func (jobMUS) Marshal(j Job, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(j.Id), bs)
	n += ord.String.Marshal(j.SourceRef, bs[n:])
	n += ord.String.Marshal(j.IdempotencyKey, bs[n:])
	n += varint.Int.Marshal(int(j.State), bs[n:])
	n += ord.String.Marshal(j.Reason, bs[n:])
	n += ord.String.Marshal(j.LastError, bs[n:])
	n += ord.String.Marshal(j.ExternalJobId, bs[n:])
	n += varint.Int.Marshal(j.AttemptCount, bs[n:])
	n += varint.Int.Marshal(j.PollCount, bs[n:])
	n += marshalTime(j.PollStartedAt, bs[n:])
	n += ord.Bool.Marshal(j.CancelRequested, bs[n:])
	n += ord.Bool.Marshal(j.Options.SkipConcepts, bs[n:])
	n += varint.Int.Marshal(j.Options.ChunkTokenBudget, bs[n:])
	n += varint.Int.Marshal(j.Options.ChunkOverlap, bs[n:])
	n += ord.String.Marshal(j.Options.EmbeddingModelVersion, bs[n:])
	n += marshalTime(j.CreatedAt, bs[n:])
	n += marshalTime(j.UpdatedAt, bs[n:])
	return n
}

func (jobMUS) Unmarshal(bs []byte) (j Job, n int, err error) {
	var (
		m     int
		id    uint64
		state int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	j.Id = ID(id)
	if j.SourceRef, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.IdempotencyKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if state, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	j.State = JobState(state)
	if j.Reason, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.LastError, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.ExternalJobId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.AttemptCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.PollCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.PollStartedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.CancelRequested, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Options.SkipConcepts, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Options.ChunkTokenBudget, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Options.ChunkOverlap, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Options.EmbeddingModelVersion, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	return j, n, nil
}

func (jobMUS) Size(j Job) int {
	size := varint.Uint64.Size(uint64(j.Id))
	size += ord.String.Size(j.SourceRef)
	size += ord.String.Size(j.IdempotencyKey)
	size += varint.Int.Size(int(j.State))
	size += ord.String.Size(j.Reason)
	size += ord.String.Size(j.LastError)
	size += ord.String.Size(j.ExternalJobId)
	size += varint.Int.Size(j.AttemptCount)
	size += varint.Int.Size(j.PollCount)
	size += sizeTime(j.PollStartedAt)
	size += ord.Bool.Size(j.CancelRequested)
	size += ord.Bool.Size(j.Options.SkipConcepts)
	size += varint.Int.Size(j.Options.ChunkTokenBudget)
	size += varint.Int.Size(j.Options.ChunkOverlap)
	size += ord.String.Size(j.Options.EmbeddingModelVersion)
	size += sizeTime(j.CreatedAt)
	size += sizeTime(j.UpdatedAt)
	return size
}

// chunkMUS serializes Chunks.
type chunkMUS struct{}

// ChunkMUS is the serializer for Chunk values.
var ChunkMUS = chunkMUS{}

func (chunkMUS) Marshal(c Chunk, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(c.Id), bs)
	n += varint.Uint64.Marshal(uint64(c.JobId), bs[n:])
	n += varint.Int.Marshal(c.SequenceIndex, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(c.TokenCount, bs[n:])
	n += varint.Int.Marshal(c.StartOffset, bs[n:])
	n += varint.Int.Marshal(c.EndOffset, bs[n:])
	n += ord.Bool.Marshal(c.Degraded, bs[n:])
	n += ord.Bool.Marshal(c.Indexed, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var (
		m  int
		id uint64
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	c.Id = ID(id)
	if id, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	c.JobId = ID(id)
	if c.SequenceIndex, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.TokenCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.StartOffset, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.EndOffset, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Degraded, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Indexed, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	return c, n, nil
}

func (chunkMUS) Size(c Chunk) int {
	size := varint.Uint64.Size(uint64(c.Id))
	size += varint.Uint64.Size(uint64(c.JobId))
	size += varint.Int.Size(c.SequenceIndex)
	size += ord.String.Size(c.Text)
	size += varint.Int.Size(c.TokenCount)
	size += varint.Int.Size(c.StartOffset)
	size += varint.Int.Size(c.EndOffset)
	size += ord.Bool.Size(c.Degraded)
	size += ord.Bool.Size(c.Indexed)
	return size
}

// conceptMUS serializes Concepts.
type conceptMUS struct{}

// ConceptMUS is the serializer for Concept values.
var ConceptMUS = conceptMUS{}

func (conceptMUS) Marshal(c Concept, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(c.Id), bs)
	n += varint.Uint64.Marshal(uint64(c.ChunkId), bs[n:])
	n += varint.Uint64.Marshal(uint64(c.JobId), bs[n:])
	n += ord.String.Marshal(c.Label, bs[n:])
	n += varint.Int.Marshal(int(c.Kind), bs[n:])
	n += ord.String.Marshal(c.Triple.Subject, bs[n:])
	n += ord.String.Marshal(c.Triple.Predicate, bs[n:])
	n += ord.String.Marshal(c.Triple.Object, bs[n:])
	return n
}

func (conceptMUS) Unmarshal(bs []byte) (c Concept, n int, err error) {
	var (
		m    int
		id   uint64
		kind int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	c.Id = ID(id)
	if id, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	c.ChunkId = ID(id)
	if id, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	c.JobId = ID(id)
	if c.Label, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if kind, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	c.Kind = ConceptKind(kind)
	if c.Triple.Subject, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Triple.Predicate, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Triple.Object, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	return c, n, nil
}

func (conceptMUS) Size(c Concept) int {
	size := varint.Uint64.Size(uint64(c.Id))
	size += varint.Uint64.Size(uint64(c.ChunkId))
	size += varint.Uint64.Size(uint64(c.JobId))
	size += ord.String.Size(c.Label)
	size += varint.Int.Size(int(c.Kind))
	size += ord.String.Size(c.Triple.Subject)
	size += ord.String.Size(c.Triple.Predicate)
	size += ord.String.Size(c.Triple.Object)
	return size
}

// embeddingMUS serializes Embeddings.
type embeddingMUS struct{}

// EmbeddingMUS is the serializer for Embedding values.
var EmbeddingMUS = embeddingMUS{}

func (embeddingMUS) Marshal(e Embedding, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(e.ChunkId), bs)
	n += varint.Uint64.Marshal(uint64(e.JobId), bs[n:])
	n += marshalVector(e.Vector, bs[n:])
	n += ord.String.Marshal(e.ModelVersion, bs[n:])
	return n
}

func (embeddingMUS) Unmarshal(bs []byte) (e Embedding, n int, err error) {
	var (
		m  int
		id uint64
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	e.ChunkId = ID(id)
	if id, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	e.JobId = ID(id)
	if e.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.ModelVersion, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	return e, n, nil
}

func (embeddingMUS) Size(e Embedding) int {
	size := varint.Uint64.Size(uint64(e.ChunkId))
	size += varint.Uint64.Size(uint64(e.JobId))
	size += sizeVector(e.Vector)
	size += ord.String.Size(e.ModelVersion)
	return size
}

// artifactsMUS serializes staged Artifacts.
type artifactsMUS struct{}

// ArtifactsMUS is the serializer for Artifacts values.
var ArtifactsMUS = artifactsMUS{}

func (artifactsMUS) Marshal(a Artifacts, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(a.JobId), bs)
	n += varint.Int.Marshal(len(a.Chunks), bs[n:])
	for _, c := range a.Chunks {
		n += ChunkMUS.Marshal(c, bs[n:])
	}
	n += varint.Int.Marshal(len(a.Concepts), bs[n:])
	for _, c := range a.Concepts {
		n += ConceptMUS.Marshal(c, bs[n:])
	}
	n += varint.Int.Marshal(len(a.Embeddings), bs[n:])
	for _, e := range a.Embeddings {
		n += EmbeddingMUS.Marshal(e, bs[n:])
	}
	return n
}

func (artifactsMUS) Unmarshal(bs []byte) (a Artifacts, n int, err error) {
	var (
		m      int
		id     uint64
		length int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	a.JobId = ID(id)

	if length, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	a.Chunks = make([]Chunk, length)
	for i := 0; i < length; i++ {
		if a.Chunks[i], m, err = ChunkMUS.Unmarshal(bs[n:]); err != nil {
			return a, n + m, err
		}
		n += m
	}

	if length, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	a.Concepts = make([]Concept, length)
	for i := 0; i < length; i++ {
		if a.Concepts[i], m, err = ConceptMUS.Unmarshal(bs[n:]); err != nil {
			return a, n + m, err
		}
		n += m
	}

	if length, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	a.Embeddings = make([]Embedding, length)
	for i := 0; i < length; i++ {
		if a.Embeddings[i], m, err = EmbeddingMUS.Unmarshal(bs[n:]); err != nil {
			return a, n + m, err
		}
		n += m
	}
	return a, n, nil
}

func (artifactsMUS) Size(a Artifacts) int {
	size := varint.Uint64.Size(uint64(a.JobId))
	size += varint.Int.Size(len(a.Chunks))
	for _, c := range a.Chunks {
		size += ChunkMUS.Size(c)
	}
	size += varint.Int.Size(len(a.Concepts))
	for _, c := range a.Concepts {
		size += ConceptMUS.Size(c)
	}
	size += varint.Int.Size(len(a.Embeddings))
	for _, e := range a.Embeddings {
		size += EmbeddingMUS.Size(e)
	}
	return size
}

// taskMUS serializes queued Tasks.
type taskMUS struct{}

// TaskMUS is the serializer for Task values.
var TaskMUS = taskMUS{}

func (taskMUS) Marshal(t Task, bs []byte) int {
	n := ord.String.Marshal(t.Id, bs)
	n += ord.String.Marshal(t.Name, bs[n:])
	n += ord.String.Marshal(string(t.Payload), bs[n:])
	n += marshalTime(t.ETA, bs[n:])
	n += varint.Int.Marshal(t.Attempts, bs[n:])
	n += varint.Int.Marshal(t.MaxAttempts, bs[n:])
	return n
}

func (taskMUS) Unmarshal(bs []byte) (t Task, n int, err error) {
	var (
		m       int
		payload string
	)
	if t.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if t.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + m, err
	}
	n += m
	if payload, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + m, err
	}
	n += m
	if payload != "" {
		t.Payload = []byte(payload)
	}
	if t.ETA, m, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + m, err
	}
	n += m
	if t.Attempts, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + m, err
	}
	n += m
	if t.MaxAttempts, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + m, err
	}
	n += m
	return t, n, nil
}

func (taskMUS) Size(t Task) int {
	size := ord.String.Size(t.Id)
	size += ord.String.Size(t.Name)
	size += ord.String.Size(string(t.Payload))
	size += sizeTime(t.ETA)
	size += varint.Int.Size(t.Attempts)
	size += varint.Int.Size(t.MaxAttempts)
	return size
}
