package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/hashing"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var policyText = strings.Join([]string{
	"Acme Insurance Company\nHealth Insurance Policy\nPolicy Number: HLT-2024-001\nThis policy is issued to the policyholder named in the schedule.",
	"Coverage Details\nMaximum coverage limit: $50,000\nThe insured is covered for hospitalization expenses.\n\nExclusions:\n- Cosmetic surgery and related treatments\n- Injuries from dangerous sports",
	"Claims Process\nClaims must be filed within 30 days of discharge.\n\nAnnual premium: $1,200 payable in advance.",
}, "\f")

type components struct {
	parser    *parser.Parser
	chunker   *chunker.Chunker
	extractor *extract.Extractor
}

func newComponents(t *testing.T, size, overlap int) components {
	t.Helper()
	c, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
	require.NoError(t, err)
	e, err := extract.New(extract.DefaultConfig())
	require.NoError(t, err)
	return components{parser: parser.New(), chunker: c, extractor: e}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	c := newComponents(t, 200, 40)
	embedder, err := hashing.New()
	require.NoError(t, err)
	p, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline(t *testing.T) {
	c := newComponents(t, 200, 40)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		p, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder)
		require.NoError(t, err)
		defer p.Release()
		assert.Len(t, p.processors, 3)
		assert.Same(t, embedder, p.Embedder())
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder,
			WithPoolSize(4), WithBatchSize(8), WithLogger(slog.Default()))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 4, p.embeddingPool.Cap())
		assert.Equal(t, 8, p.batchSize)
	})

	t.Run("pool size below one is raised", func(t *testing.T) {
		p, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder, WithPoolSize(0))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 1, p.embeddingPool.Cap())
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder, WithBatchSize(0))
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("nil dependencies", func(t *testing.T) {
		_, err := NewPipeline(nil, c.chunker, c.extractor, embedder)
		assert.Equal(t, ErrParserRequired, err)
		_, err = NewPipeline(c.parser, nil, c.extractor, embedder)
		assert.Equal(t, ErrChunkerRequired, err)
		_, err = NewPipeline(c.parser, c.chunker, nil, embedder)
		assert.Equal(t, ErrExtractorRequired, err)
		_, err = NewPipeline(c.parser, c.chunker, c.extractor, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	indexedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, WithBatchSize(2), WithClock(func() time.Time { return indexedAt }))

	snap, err := p.Ingest(ctx, []byte(policyText), core.FormatTXT)
	require.NoError(t, err)

	t.Run("document", func(t *testing.T) {
		assert.Len(t, snap.Document.Segments, 3)
		assert.Equal(t, core.KindInsurancePolicy, snap.Document.Kind)
		assert.Equal(t, indexedAt, snap.IndexedAt)
	})

	t.Run("chunks cover the text", func(t *testing.T) {
		require.Greater(t, len(snap.Chunks), 2)
		var b strings.Builder
		b.WriteString(snap.Chunks[0].Text)
		for _, c := range snap.Chunks[1:] {
			b.WriteString(string([]rune(c.Text)[40:]))
		}
		assert.Equal(t, snap.Document.Text(), b.String())
	})

	t.Run("index holds every chunk", func(t *testing.T) {
		assert.Equal(t, len(snap.Chunks), snap.Index.Len())
		assert.Equal(t, snap.Document.Id, snap.Index.DocumentID())
		assert.Equal(t, "hashing-tf-v1-512", snap.Index.ModelID())
	})

	t.Run("fields", func(t *testing.T) {
		var coverage []core.StructuredField
		for _, f := range snap.Fields {
			if f.Key == core.FieldCoverageLimit {
				coverage = append(coverage, f)
			}
		}
		require.NotEmpty(t, coverage)
		assert.Equal(t, "$50,000", coverage[0].Value)
		assert.Equal(t, 2, coverage[0].Page)
	})

	t.Run("summary", func(t *testing.T) {
		summary := snap.Summary()
		assert.Equal(t, snap.Document.Id, summary.Id)
		assert.Equal(t, len(snap.Chunks), summary.Chunks)
		assert.Equal(t, 1, summary.EstimatedPages)
		assert.Equal(t, []string{"Coverage Details", "Exclusions", "Claims Process"}, summary.KeySections)
	})
}

func TestIngestDoesNotMutateParsedDocument(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)

	doc, err := parser.New().Parse(ctx, []byte(policyText), core.FormatTXT)
	require.NoError(t, err)

	snap, err := p.Build(ctx, doc)
	require.NoError(t, err)
	assert.Empty(t, doc.Kind)
	assert.Equal(t, core.KindInsurancePolicy, snap.Document.Kind)
}

func TestIngestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported format", func(t *testing.T) {
		_, err := newTestPipeline(t).Ingest(ctx, []byte("x"), core.Format("odt"))
		assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	})

	t.Run("corrupt document", func(t *testing.T) {
		_, err := newTestPipeline(t).Ingest(ctx, []byte{0xff, 0xfe}, core.FormatTXT)
		assert.ErrorIs(t, err, core.ErrCorruptDocument)
	})

	t.Run("embedding failure returns no snapshot", func(t *testing.T) {
		c := newComponents(t, 100, 20)
		boom := errors.New("embedding service down")
		embedder := mock.NewMockEmbedder()
		var mu sync.Mutex
		calls := 0
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 2 {
				return nil, boom
			}
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 0}
			}
			return out, nil
		}

		p, err := NewPipeline(c.parser, c.chunker, c.extractor, embedder, WithBatchSize(1), WithPoolSize(2))
		require.NoError(t, err)
		defer p.Release()

		snap, err := p.Ingest(ctx, []byte(policyText), core.FormatTXT)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "embeddings")
		assert.Nil(t, snap)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newTestPipeline(t).Ingest(cancelled, []byte(policyText), core.FormatTXT)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte(policyText), 0o600))

	snap, err := newTestPipeline(t).IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, core.FormatTXT, snap.Document.Format)
}

func TestConcurrentIngest(t *testing.T) {
	p := newTestPipeline(t, WithPoolSize(2))

	var wg sync.WaitGroup
	ids := make([]core.ID, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := policyText + "\fAppendix " + strings.Repeat("x", i+1)
			snap, err := p.Ingest(context.Background(), []byte(text), core.FormatTXT)
			if assert.NoError(t, err) {
				ids[i] = snap.Document.Id
			}
		}()
	}
	wg.Wait()

	seen := make(map[core.ID]bool)
	for _, id := range ids {
		assert.NotZero(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, len(ids))
}
