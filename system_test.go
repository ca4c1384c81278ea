package quarry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quarryhq/quarry/ai/mock"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/jobs"
	"github.com/quarryhq/quarry/reembed"
	"github.com/quarryhq/quarry/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys, err := NewSystem("",
		WithInMemoryStorage(),
		WithProvider(mock.NewMockProvider()),
		WithTranscriber(transcribe.NewMockClient()),
		WithTokenCounter(wordCounter{}),
		WithCoordinatorConfig(jobs.Config{
			PollBaseDelay:   10 * time.Millisecond,
			WriteRetryDelay: 5 * time.Millisecond,
		}))
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })
	return sys
}

func waitIndexed(t *testing.T, sys *System, jobID core.ID) *core.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := sys.Coordinator().GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Terminal() {
			require.Equal(t, core.JobStateIndexed, job.State,
				"job ended %s (reason %q, err %q)", job.State, job.Reason, job.LastError)
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestNewSystem(t *testing.T) {
	t.Run("create with on-disk storage", func(t *testing.T) {
		sys, err := NewSystem(filepath.Join(t.TempDir(), "quarry_db"),
			WithProvider(mock.NewMockProvider()),
			WithTokenCounter(wordCounter{}))
		require.NoError(t, err)
		require.NotNil(t, sys)
		defer sys.Close()

		assert.NotNil(t, sys.Coordinator())
		assert.NotNil(t, sys.Stores())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

		sys, err := NewSystem(tmpFile,
			WithProvider(mock.NewMockProvider()),
			WithTokenCounter(wordCounter{}))
		assert.Error(t, err)
		assert.Nil(t, sys)
	})
}

func TestSystemIngestAndSearch(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	text := "Badger stores keys in an LSM tree. Compaction merges levels in the background."
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	jobID, err := sys.Coordinator().Submit(ctx, path, "", core.JobOptions{})
	require.NoError(t, err)
	waitIndexed(t, sys, jobID)

	searcher, err := sys.NewSearcher()
	require.NoError(t, err)

	// The document fits one chunk, so querying with its exact text scores
	// a perfect similarity hit.
	results, err := searcher.FindSimilar(ctx, text, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, text, results[0].Chunk.Text)
}

func TestSystemReembedder(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("re-embedding source text."), 0644))
	jobID, err := sys.Coordinator().Submit(ctx, path, "", core.JobOptions{})
	require.NoError(t, err)
	waitIndexed(t, sys, jobID)

	var out bytes.Buffer
	r, err := sys.NewReembedder(&reembed.Config{ModelVersion: "v2", RetryDelay: time.Millisecond, MaxRetries: 1}, &out)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))
	assert.Contains(t, out.String(), "Re-embedding complete")
}

func TestSystemWithoutTranscriberRejectsURLs(t *testing.T) {
	sys, err := NewSystem("",
		WithInMemoryStorage(),
		WithProvider(mock.NewMockProvider()),
		WithTokenCounter(wordCounter{}))
	require.NoError(t, err)
	defer sys.Close()
	ctx := context.Background()

	jobID, err := sys.Coordinator().Submit(ctx, "https://example.com/a.mp3", "", core.JobOptions{})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := sys.Coordinator().GetJob(ctx, jobID)
		require.NoError(t, err)
		if job.Terminal() {
			assert.Equal(t, core.JobStateFailed, job.State)
			assert.Equal(t, core.ReasonExternalJobFailed, job.Reason)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not fail in time")
}
