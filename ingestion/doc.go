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


// Package ingestion transforms staged source text into chunks, concepts and
// embeddings. The pipeline runs its stages strictly in order within a job:
// chunking, then concept extraction (fanned out per chunk, reassembled in
// document order), then batch embedding. Transient stage failures are
// retried with backoff up to a bounded attempt count; the caller decides
// what a stage failure means for the job.
//
// The pipeline never writes to the stores. It returns core.Artifacts and
// leaves durability and the multi-store write order to the job coordinator.
package ingestion
