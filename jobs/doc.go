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


// Package jobs implements the ingestion job coordinator: the asynchronous
// lifecycle that takes a submitted source reference through transcription
// polling, pipeline processing and the three-store write sequence.
//
// Every state transition is persisted before the next task is enqueued, so
// a crashed worker resumes from the last recorded state after queue
// recovery. Task handlers own their job outcomes: a handler records FAILED,
// INDEXED_DEGRADED or CANCELLED on the job itself and returns nil to the
// queue; a non-nil return is reserved for infrastructure faults worth a
// blind retry.
//
// There is no transaction across the document, vector and graph stores.
// Writes happen in a fixed order (documents, vectors, graph) under a
// single-writer job lease, with compensation on partial failure: a vector
// write failure fails the job but leaves chunks queryable and marked
// unindexed, a graph write failure degrades the job instead of failing it.
package jobs
