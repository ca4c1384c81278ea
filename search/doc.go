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


// Package search ranks indexed chunks against free-text queries.
//
// The Searcher embeds the query, runs a top-k vector store query
// (optionally scoped to one job), hydrates the matching chunks and
// applies a verbatim keyword boost with stop-word filtering. Chunks that
// are not marked indexed never appear in results, so a job whose vector
// write failed stays invisible to the query surface until re-indexed.
package search
