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


package quarry

import (
	"context"
	"io"
	"log/slog"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/ai/openai"
	"github.com/quarryhq/quarry/chunker"
	"github.com/quarryhq/quarry/ingestion"
	"github.com/quarryhq/quarry/jobs"
	"github.com/quarryhq/quarry/queue"
	"github.com/quarryhq/quarry/reembed"
	"github.com/quarryhq/quarry/search"
	"github.com/quarryhq/quarry/storage"
	"github.com/quarryhq/quarry/storage/badger"
	"github.com/quarryhq/quarry/transcribe"
)

// System wires storage, the task queue, the AI provider, the pipeline and
// the job coordinator into one ingestion service.
type System struct {
	stores      *storage.Stores
	queue       *queue.LocalQueue
	provider    ai.AIProvider
	pipeline    *ingestion.Pipeline
	coordinator *jobs.Coordinator
	logger      *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig          *ai.Config
	provider          ai.AIProvider
	transcriber       transcribe.Client
	counter           chunker.TokenCounter
	coordinatorConfig jobs.Config
	pipelineOpts      []ingestion.Option
	queueOpts         []queue.Option
	inMemory          bool
}

// WithAIConfig sets the AI provider configuration. Ignored when
// WithProvider supplies a provider directly.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider, bypassing the OpenAI
// provider construction. Intended for tests and custom backends.
func WithProvider(provider ai.AIProvider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithTranscriber sets the external transcription client. Without one,
// URL sources fail permanently and only local files can be ingested.
func WithTranscriber(client transcribe.Client) SystemOption {
	return func(o *systemOptions) {
		o.transcriber = client
	}
}

// WithTokenCounter overrides the tiktoken-based token counter.
func WithTokenCounter(counter chunker.TokenCounter) SystemOption {
	return func(o *systemOptions) {
		o.counter = counter
	}
}

// WithCoordinatorConfig tunes polling, write retries and the job lease.
func WithCoordinatorConfig(config jobs.Config) SystemOption {
	return func(o *systemOptions) {
		o.coordinatorConfig = config
	}
}

// WithPipelineOptions forwards options to the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) SystemOption {
	return func(o *systemOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithQueueOptions forwards options to the task queue.
func WithQueueOptions(opts ...queue.Option) SystemOption {
	return func(o *systemOptions) {
		o.queueOpts = append(o.queueOpts, opts...)
	}
}

// WithInMemoryStorage uses BadgerDB's in-memory mode instead of the file
// path. Intended for tests.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewSystem opens storage at filePath and wires the full ingestion
// service. Call Recover afterwards to resume jobs interrupted by a
// previous shutdown, and Close when done.
func NewSystem(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	var stores *storage.Stores
	var err error
	if options.inMemory {
		stores, err = badger.NewMemoryStores()
	} else {
		stores, err = badger.NewStores(filePath)
	}
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			stores.Close()
			return nil, err
		}
	}

	counter := options.counter
	if counter == nil {
		counter, err = chunker.NewTiktokenCounter()
		if err != nil {
			provider.Close()
			stores.Close()
			return nil, err
		}
	}

	transcriber := options.transcriber
	if transcriber == nil {
		transcriber = transcribe.NewDisabledClient()
	}

	q, err := queue.NewLocalQueue(stores.Tasks, options.queueOpts...)
	if err != nil {
		provider.Close()
		stores.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(counter, provider, options.pipelineOpts...)
	if err != nil {
		q.Close()
		provider.Close()
		stores.Close()
		return nil, err
	}

	coordinator, err := jobs.NewCoordinator(stores, transcriber, pipeline, q, options.coordinatorConfig)
	if err != nil {
		pipeline.Release()
		q.Close()
		provider.Close()
		stores.Close()
		return nil, err
	}

	return &System{
		stores:      stores,
		queue:       q,
		provider:    provider,
		pipeline:    pipeline,
		coordinator: coordinator,
		logger:      slog.Default(),
	}, nil
}

// Recover re-dispatches tasks that were pending when the previous process
// stopped.
func (s *System) Recover(ctx context.Context) error {
	return s.queue.Recover(ctx)
}

// Close shuts the system down: queue first so no handler touches a
// closing store, then the pipeline, provider and stores.
func (s *System) Close() error {
	if err := s.queue.Close(); err != nil {
		s.logger.Error("error closing task queue", "err", err)
	}
	s.pipeline.Release()
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.stores.Close(); err != nil {
		s.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

// Coordinator exposes the job lifecycle operations.
func (s *System) Coordinator() *jobs.Coordinator {
	return s.coordinator
}

// Stores exposes the underlying store bundle.
func (s *System) Stores() *storage.Stores {
	return s.stores
}

// NewSearcher builds a searcher over the system's stores and provider.
func (s *System) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.stores.Vectors, s.stores.Documents, s.provider, opts...)
}

// NewReembedder builds a re-embedding migration over the system's stores.
func (s *System) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(s.stores, s.provider.Embedder(), config, progress)
}
