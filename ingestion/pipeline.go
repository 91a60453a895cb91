package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/parser"
)

// Pipeline orchestrates the ingestion of documents into index snapshots.
// It is safe for concurrent use; each call builds its own private snapshot.
type Pipeline struct {
	parser        *parser.Parser
	chunker       *chunker.Chunker
	extractor     *extract.Extractor
	embedder      ai.Embedder
	embeddingPool *ants.Pool
	batchSize     int
	processors    []processor
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are sent to the embedder per call.
// Default is index.DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrInvalidConfig, n)
		}
		p.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithClock overrides the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	parser *parser.Parser,
	chunker *chunker.Chunker,
	extractor *extract.Extractor,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if parser == nil {
		return nil, ErrParserRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		parser:        parser,
		chunker:       chunker,
		extractor:     extractor,
		embedder:      embedder,
		embeddingPool: embeddingPool,
		batchSize:     index.DefaultBatchSize,
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	p.processors = []processor{
		newChunkProcessor(chunker, p.logger),
		newFieldProcessor(extractor, p.logger),
		newEmbeddingProcessor(embedder, p.embeddingPool, p.batchSize, p.logger),
	}

	return p, nil
}

// Embedder returns the embedder used for chunk vectors.
func (p *Pipeline) Embedder() ai.Embedder {
	return p.embedder
}

// Ingest parses raw bytes and builds a snapshot of the document.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, format core.Format) (*index.Snapshot, error) {
	doc, err := p.parser.Parse(ctx, data, format)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, doc)
}

// IngestFile reads and ingests a file, detecting the format from its extension.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*index.Snapshot, error) {
	doc, err := p.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, doc)
}

// Build runs an already parsed document through chunking, field extraction
// and embedding. The snapshot is returned only when every stage succeeds.
func (p *Pipeline) Build(ctx context.Context, doc *core.Document) (*index.Snapshot, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	started := time.Now()
	b := &build{doc: doc}
	for _, proc := range p.processors {
		if err := proc.process(ctx, b); err != nil {
			p.logger.Warn("ingestion failed", "document", doc.Id, "stage", proc.name(), "err", err)
			return nil, fmt.Errorf("%s: %w", proc.name(), err)
		}
	}

	snap := &index.Snapshot{
		Document:  b.doc,
		Chunks:    b.chunks,
		Index:     b.index,
		Fields:    b.fields,
		IndexedAt: p.now(),
	}
	p.logger.Info("document ingested",
		"document", doc.Id,
		"kind", b.doc.Kind,
		"chunks", len(b.chunks),
		"fields", len(b.fields),
		"elapsed", time.Since(started))
	return snap, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
