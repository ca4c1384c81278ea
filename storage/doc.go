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


// Package storage defines the persistence interfaces for quarry.
//
// Three independently-failing systems of record hold a job's artifacts:
// DocumentStore (chunk text and metadata), VectorStore (the similarity
// index), and GraphStore (concept and relation triples). There is no
// cross-store transaction; the job coordinator keeps them consistent
// through a fixed write order and compensation. JobRepository, StagingStore
// and TaskStore carry the coordinator's own durable state.
//
// Public constructors in backend packages return these interfaces, never
// concrete types, so backends stay swappable and tests can substitute
// in-memory implementations:
//
//	stores, err := badger.NewStores("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stores.Close()
//
// All implementations must be thread-safe and accept context.Context for
// cancellation.
package storage
