package reindex

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/hashing"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/parser"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documents = []string{
	"Health Insurance Policy\nMaximum coverage limit: $50,000\fClaims must be filed within 30 days.",
	"Employee Handbook\nEmployees accrue 20 days of annual leave.",
	"Service Agreement\nThis agreement has a term of 12 months.",
}

func newPipeline(t *testing.T, embedder ai.Embedder) *ingestion.Pipeline {
	t.Helper()
	c, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	e, err := extract.New(extract.DefaultConfig())
	require.NoError(t, err)
	p, err := ingestion.NewPipeline(parser.New(), c, e, embedder)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// seed stores every document indexed by the mock embedder.
func seed(t *testing.T, repo storage.IndexRepository) []core.ID {
	t.Helper()
	p := newPipeline(t, mock.NewMockEmbedder())
	ids := make([]core.ID, 0, len(documents))
	for _, text := range documents {
		snap, err := p.Ingest(context.Background(), []byte(text), core.FormatTXT)
		require.NoError(t, err)
		require.NoError(t, repo.SaveIndex(context.Background(), storage.RecordFromSnapshot(snap)))
		ids = append(ids, snap.Document.Id)
	}
	return ids
}

func newRepo(t *testing.T) storage.IndexRepository {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

// flakyBuilder fails the first failures builds of each document.
type flakyBuilder struct {
	*ingestion.Pipeline
	failures int
	err      error

	mu    sync.Mutex
	calls map[core.ID]int
}

func (b *flakyBuilder) Build(ctx context.Context, doc *core.Document) (*index.Snapshot, error) {
	b.mu.Lock()
	b.calls[doc.Id]++
	n := b.calls[doc.Id]
	b.mu.Unlock()
	if n <= b.failures {
		return nil, b.err
	}
	return b.Pipeline.Build(ctx, doc)
}

func TestNewReindexer(t *testing.T) {
	repo := newRepo(t)
	p := newPipeline(t, mock.NewMockEmbedder())

	tests := []struct {
		name    string
		repo    storage.IndexRepository
		builder Builder
		config  Config
		want    error
	}{
		{name: "valid", repo: repo, builder: p, config: DefaultConfig()},
		{name: "missing repository", builder: p, config: DefaultConfig(), want: ErrRepositoryRequired},
		{name: "missing builder", repo: repo, config: DefaultConfig(), want: ErrBuilderRequired},
		{name: "no attempts", repo: repo, builder: p, config: Config{}, want: ai.ErrInvalidMaxAttempts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReindexer(tt.repo, tt.builder, tt.config)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestRun_RebuildsStaleIndexes(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ids := seed(t, repo)

	embedder, err := hashing.New()
	require.NoError(t, err)
	var (
		progress bytes.Buffer
		rebuilt  []*index.Snapshot
	)
	r, err := NewReindexer(repo, newPipeline(t, embedder), fastConfig(),
		WithProgress(&progress),
		WithRebuiltHook(func(s *index.Snapshot) { rebuilt = append(rebuilt, s) }))
	require.NoError(t, err)

	stale, err := r.Stale(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, len(ids))

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ids), result.Checked)
	assert.ElementsMatch(t, ids, result.Rebuilt)
	assert.Empty(t, result.Failed)
	assert.Len(t, rebuilt, len(ids))

	for _, id := range ids {
		_, err := repo.LoadIndex(ctx, id, mock.NewMockEmbedder().ModelID())
		require.ErrorIs(t, err, storage.ErrStaleIndex)

		record, err := repo.LoadIndex(ctx, id, embedder.ModelID())
		require.NoError(t, err)
		assert.Equal(t, embedder.Dimension(), record.Meta.Dimension)
		assert.Len(t, record.Vectors, len(record.Chunks))
	}
	assert.Contains(t, progress.String(), "Reindexed 3/3")

	stale, err = r.Stale(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)

	progress.Reset()
	result, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Checked)
	assert.Contains(t, progress.String(), "All indexes are current")
}

func TestRun_Force(t *testing.T) {
	repo := newRepo(t)
	ids := seed(t, repo)

	cfg := fastConfig()
	cfg.Force = true
	r, err := NewReindexer(repo, newPipeline(t, mock.NewMockEmbedder()), cfg)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Rebuilt, len(ids))
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	repo := newRepo(t)
	ids := seed(t, repo)

	embedder, err := hashing.New()
	require.NoError(t, err)
	builder := &flakyBuilder{
		Pipeline: newPipeline(t, embedder),
		failures: 1,
		err:      errors.New("embedding service hiccup"),
		calls:    map[core.ID]int{},
	}
	r, err := NewReindexer(repo, builder, fastConfig())
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Rebuilt, len(ids))
	for _, id := range ids {
		assert.Equal(t, 2, builder.calls[id])
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	repo := newRepo(t)
	ids := seed(t, repo)

	embedder, err := hashing.New()
	require.NoError(t, err)
	builder := &flakyBuilder{
		Pipeline: newPipeline(t, embedder),
		failures: 10,
		err:      core.ErrCorruptDocument,
		calls:    map[core.ID]int{},
	}
	r, err := NewReindexer(repo, builder, fastConfig())
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrCorruptDocument)
	assert.ElementsMatch(t, ids, result.Failed)
	assert.Empty(t, result.Rebuilt)
	for _, id := range ids {
		assert.Equal(t, 1, builder.calls[id], "corrupt documents are not retried")
		_, err := repo.LoadIndex(context.Background(), id, mock.NewMockEmbedder().ModelID())
		assert.NoError(t, err, "failed rebuild keeps the old index")
	}
}

func TestRun_Cancelled(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)

	embedder, err := hashing.New()
	require.NoError(t, err)
	r, err := NewReindexer(repo, newPipeline(t, embedder), fastConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestProgressTracker(t *testing.T) {
	t.Run("reports every interval", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 4, 2)
		tracker.Start()
		tracker.Done(false)
		assert.Empty(t, buf.String())
		tracker.Done(true)
		assert.Contains(t, buf.String(), "2/4 (50.0%), 1 failed")
		tracker.Done(false)
		tracker.Done(false)
		tracker.Finish()
		assert.Contains(t, buf.String(), "4/4 (100.0%)")
		assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	})

	t.Run("ignores updates before start", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 2, 1)
		tracker.Done(false)
		tracker.Finish()
		assert.Empty(t, buf.String())
		assert.Zero(t, tracker.Elapsed())
	})

	t.Run("caps at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 1, 1)
		tracker.Start()
		tracker.Done(false)
		tracker.Done(false)
		assert.NotContains(t, buf.String(), "2/1")
	})

	t.Run("nil writer", func(t *testing.T) {
		tracker := NewProgressTracker(nil, 1, 0)
		tracker.Start()
		tracker.Done(false)
		tracker.Finish()
	})
}
