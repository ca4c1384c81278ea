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


package badger

import "github.com/quarryhq/quarry/storage"

// NewStores opens a BadgerDB database at path and wires every store onto
// the shared backend. All stores participate in the same keyspace, so a
// single Close tears everything down.
func NewStores(path string) (*storage.Stores, error) {
	return newStores(path, false)
}

// NewMemoryStores creates in-memory stores for testing.
func NewMemoryStores() (*storage.Stores, error) {
	return newStores("", true)
}

func newStores(path string, inMemory bool) (*storage.Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	jobs, err := NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &storage.Stores{
		Jobs:      jobs,
		Documents: NewDocumentStore(backend),
		Vectors:   NewVectorStore(backend),
		Graph:     NewGraphStore(backend),
		Staging:   NewStagingStore(backend),
		Tasks:     NewTaskStore(backend),
		Close: func() error {
			if err := jobs.Close(); err != nil {
				backend.Close()
				return err
			}
			return backend.Close()
		},
	}, nil
}
