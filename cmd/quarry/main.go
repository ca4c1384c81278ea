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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quarryhq/quarry"
	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/jobs"
	"github.com/quarryhq/quarry/reembed"
	"github.com/quarryhq/quarry/search"
	"github.com/quarryhq/quarry/transcribe"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "quarry",
		Usage: "Document ingestion and indexing service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "quarry_db",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Submit a document or media URL for ingestion",
				ArgsUsage: "SOURCE",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "idempotency-key",
						Aliases: []string{"k"},
						Usage:   "Deduplicate resubmissions of the same source",
					},
					&cli.BoolFlag{
						Name:  "skip-concepts",
						Usage: "Skip concept extraction for this job",
					},
					&cli.IntFlag{
						Name:  "token-budget",
						Usage: "Maximum tokens per chunk (0 = default)",
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Overlap tokens between adjacent chunks (0 = default)",
					},
					&cli.StringFlag{
						Name:  "model-version",
						Usage: "Embedding model version tag (empty = default)",
					},
					&cli.BoolFlag{
						Name:    "wait",
						Aliases: []string{"w"},
						Usage:   "Block until the job reaches a terminal state",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the state of a job",
				ArgsUsage: "JOB_ID",
				Action:    statusCommand,
			},
			{
				Name:   "list",
				Usage:  "List all jobs",
				Action: listCommand,
			},
			{
				Name:      "chunks",
				Usage:     "Print a job's chunks in document order",
				ArgsUsage: "JOB_ID",
				Action:    chunksCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "text",
						Usage: "Include full chunk text",
					},
				},
			},
			{
				Name:      "concepts",
				Usage:     "Print a job's concepts and relation triples",
				ArgsUsage: "JOB_ID",
				Action:    conceptsCommand,
			},
			{
				Name:      "search",
				Usage:     "Search indexed chunks",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Uint64Flag{
						Name:  "job",
						Usage: "Restrict the search to one job",
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Similarity floor for matches",
						Value: 0.60,
					},
				},
			},
			{
				Name:      "cancel",
				Usage:     "Request cancellation of an active job",
				ArgsUsage: "JOB_ID",
				Action:    cancelCommand,
			},
			{
				Name:      "reindex",
				Usage:     "Replay the write phase of a degraded or vector-failed job",
				ArgsUsage: "JOB_ID",
				Action:    reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "wait",
						Aliases: []string{"w"},
						Usage:   "Block until the job reaches a terminal state",
					},
				},
			},
			{
				Name:      "invalidate",
				Usage:     "Delete a terminal job's chunks, vectors and concepts",
				ArgsUsage: "JOB_ID",
				Action:    invalidateCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed all indexed chunks under a new model version",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model-version",
						Usage:    "Target embedding model version tag",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openSystem builds the full service from the config file and flags and
// recovers any tasks left over from a previous run.
func openSystem(c *cli.Context) (*quarry.System, error) {
	var cfg *Config
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = readConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &Config{}
	}

	dbPath := cfg.DBPath
	if c.IsSet("db") || dbPath == "" {
		dbPath = c.String("db")
	}

	var opts []quarry.SystemOption

	if cfg.AI != nil {
		var aiOpts []ai.ConfigOption
		if cfg.AI.Host != "" {
			aiOpts = append(aiOpts, ai.WithHost(cfg.AI.Host))
		}
		if cfg.AI.EmbeddingModel != "" {
			aiOpts = append(aiOpts, ai.WithEmbeddingModel(cfg.AI.EmbeddingModel))
		}
		if cfg.AI.ExtractorModel != "" {
			aiOpts = append(aiOpts, ai.WithExtractorModel(cfg.AI.ExtractorModel))
		}
		if cfg.AI.Dimension > 0 {
			aiOpts = append(aiOpts, ai.WithDimension(cfg.AI.Dimension))
		}
		if cfg.AI.MinImportance > 0 {
			aiOpts = append(aiOpts, ai.WithMinImportance(cfg.AI.MinImportance))
		}
		if cfg.AI.ExtractConcepts != nil {
			aiOpts = append(aiOpts, ai.WithConceptExtraction(*cfg.AI.ExtractConcepts))
		}
		opts = append(opts, quarry.WithAIConfig(ai.NewConfig(aiOpts...)))
	}

	if cfg.Transcribe != nil && cfg.Transcribe.BaseURL != "" {
		client, err := transcribe.NewHTTPClient(transcribe.Config{
			BaseURL: cfg.Transcribe.BaseURL,
			APIKey:  cfg.Transcribe.APIKey,
			Timeout: seconds(cfg.Transcribe.TimeoutSeconds),
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, quarry.WithTranscriber(client))
	}

	if cfg.Jobs != nil {
		opts = append(opts, quarry.WithCoordinatorConfig(jobs.Config{
			PollBaseDelay: seconds(cfg.Jobs.PollBaseDelaySeconds),
			PollMaxDelay:  seconds(cfg.Jobs.PollMaxDelaySeconds),
			PollTimeout:   seconds(cfg.Jobs.PollTimeoutSeconds),
			WriteAttempts: cfg.Jobs.WriteAttempts,
			LeaseTTL:      seconds(cfg.Jobs.LeaseTTLSeconds),
		}))
	}

	sys, err := quarry.NewSystem(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open system at %s: %w", dbPath, err)
	}
	if err := sys.Recover(context.Background()); err != nil {
		sys.Close()
		return nil, fmt.Errorf("failed to recover pending tasks: %w", err)
	}
	return sys, nil
}

func jobIDArg(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one JOB_ID argument")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", c.Args().First(), err)
	}
	return core.ID(id), nil
}

// waitTerminal polls the job until it reaches a terminal state.
func waitTerminal(ctx context.Context, sys *quarry.System, jobID core.ID) (*core.Job, error) {
	for {
		job, err := sys.Coordinator().GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func printJob(job *core.Job) {
	fmt.Printf("job %d: %s\n", job.Id, job.State)
	fmt.Printf("  source: %s\n", job.SourceRef)
	if job.ExternalJobId != "" {
		fmt.Printf("  external job: %s (%d polls)\n", job.ExternalJobId, job.PollCount)
	}
	if job.Reason != "" {
		fmt.Printf("  reason: %s\n", job.Reason)
	}
	if job.LastError != "" {
		fmt.Printf("  error: %s\n", job.LastError)
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one SOURCE argument")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := context.Background()
	options := core.JobOptions{
		SkipConcepts:          c.Bool("skip-concepts"),
		ChunkTokenBudget:      c.Int("token-budget"),
		ChunkOverlap:          c.Int("overlap"),
		EmbeddingModelVersion: c.String("model-version"),
	}

	jobID, err := sys.Coordinator().Submit(ctx, c.Args().First(), c.String("idempotency-key"), options)
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}
	fmt.Printf("submitted job %d\n", jobID)

	if !c.Bool("wait") {
		return nil
	}
	job, err := waitTerminal(ctx, sys, jobID)
	if err != nil {
		return err
	}
	printJob(job)
	if job.State == core.JobStateFailed {
		return fmt.Errorf("job %d failed: %s", job.Id, job.Reason)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	job, err := sys.Coordinator().GetJob(context.Background(), jobID)
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func listCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	jobList, err := sys.Stores().Jobs.ListJobs(context.Background())
	if err != nil {
		return err
	}
	if len(jobList) == 0 {
		fmt.Println("no jobs")
		return nil
	}
	for _, job := range jobList {
		status := job.State.String()
		if job.Reason != "" {
			status += " (" + job.Reason + ")"
		}
		fmt.Printf("%6d  %-18s  %s\n", job.Id, status, job.SourceRef)
	}
	return nil
}

func chunksCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	chunks, err := sys.Coordinator().ListChunks(context.Background(), jobID)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		flags := ""
		if chunk.Degraded {
			flags += " degraded"
		}
		if !chunk.Indexed {
			flags += " unindexed"
		}
		fmt.Printf("#%d [%d:%d] %d tokens%s\n",
			chunk.SequenceIndex, chunk.StartOffset, chunk.EndOffset, chunk.TokenCount, flags)
		if c.Bool("text") {
			fmt.Println(chunk.Text)
		}
	}
	return nil
}

func conceptsCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := context.Background()
	concepts, err := sys.Coordinator().ListConcepts(ctx, jobID)
	if err != nil {
		return err
	}
	for _, concept := range concepts {
		if concept.Kind == core.ConceptKindEntity {
			fmt.Printf("entity   %s\n", concept.Label)
		}
	}

	triples, err := sys.Coordinator().ListTriples(ctx, jobID)
	if err != nil {
		return err
	}
	for _, triple := range triples {
		fmt.Printf("relation %s -[%s]-> %s\n", triple.Subject, triple.Predicate, triple.Object)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected a QUERY argument")
	}
	query := strings.Join(c.Args().Slice(), " ")

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	searcher, err := sys.NewSearcher(search.WithMinScore(float32(c.Float64("min-score"))))
	if err != nil {
		return err
	}

	ctx := context.Background()
	maxHits := c.Int("max-hits")
	if jobID := c.Uint64("job"); jobID != 0 {
		hits, err := searcher.FindSimilarInJob(ctx, query, maxHits, core.ID(jobID))
		if err != nil {
			return err
		}
		printHits(hits)
		return nil
	}
	hits, err := searcher.FindSimilar(ctx, query, maxHits)
	if err != nil {
		return err
	}
	printHits(hits)
	return nil
}

func printHits(hits []*search.Result) {
	if len(hits) == 0 {
		fmt.Println("no results")
		return
	}
	for i, hit := range hits {
		fmt.Printf("%2d. [%.3f] job %d chunk #%d\n",
			i+1, hit.Score, hit.Chunk.JobId, hit.Chunk.SequenceIndex)
		fmt.Printf("    %s\n", hit.Chunk.Text)
	}
}

func cancelCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Coordinator().Cancel(context.Background(), jobID); err != nil {
		return err
	}
	fmt.Printf("cancellation requested for job %d\n", jobID)
	return nil
}

func reindexCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := context.Background()
	if err := sys.Coordinator().Reindex(ctx, jobID); err != nil {
		return err
	}
	fmt.Printf("re-index scheduled for job %d\n", jobID)

	if !c.Bool("wait") {
		return nil
	}
	job, err := waitTerminal(ctx, sys, jobID)
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func invalidateCommand(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Coordinator().Invalidate(context.Background(), jobID); err != nil {
		return err
	}
	fmt.Printf("invalidated artifacts of job %d\n", jobID)
	return nil
}

func reembedCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	config := &reembed.Config{
		ModelVersion:   c.String("model-version"),
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder, err := sys.NewReembedder(config, os.Stderr)
	if err != nil {
		return err
	}
	if err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("re-embedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
