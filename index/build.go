package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// DefaultBatchSize is the number of chunk texts sent to the embedder at once.
const DefaultBatchSize = 32

type buildOptions struct {
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithPool runs embedding batches concurrently on pool. The caller owns the pool.
func WithPool(pool *ants.Pool) BuildOption {
	return func(o *buildOptions) {
		o.pool = pool
	}
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) BuildOption {
	return func(o *buildOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build embeds every chunk and returns the finished index. Nothing is returned
// unless all batches succeed, so a partial index can never escape.
func Build(ctx context.Context, documentID core.ID, embedder ai.Embedder, chunks []*core.Chunk, opts ...BuildOption) (*Index, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if len(chunks) == 0 {
		return nil, core.ErrEmptyIndex
	}

	o := buildOptions{batchSize: DefaultBatchSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "index", "document", documentID)

	vectors := make([][]float32, len(chunks))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// fail keeps the first error; a cancellation is replaced by any real
	// failure reported after it.
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for lo := 0; lo < len(chunks) && ctx.Err() == nil; lo += o.batchSize {
		hi := min(lo+o.batchSize, len(chunks))
		task := func() {
			defer wg.Done()
			if err := embedBatch(ctx, embedder, chunks[lo:hi], vectors[lo:hi]); err != nil {
				fail(fmt.Errorf("chunks %d-%d: %w", lo, hi-1, err))
			}
		}

		wg.Add(1)
		if o.pool == nil {
			task()
			continue
		}
		if err := o.pool.Submit(task); err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		logger.Error("index build failed", "err", firstErr)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := FromVectors(documentID, embedder.ModelID(), chunks, vectors)
	if err != nil {
		return nil, err
	}
	logger.Debug("index built", "chunks", idx.Len(), "dimension", idx.Dimension(), "model", idx.ModelID())
	return idx, nil
}

func embedBatch(ctx context.Context, embedder ai.Embedder, chunks []*core.Chunk, out [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: expected %d, received %d", ErrVectorCountMismatch, len(texts), len(vectors))
	}
	copy(out, vectors)
	return nil
}
