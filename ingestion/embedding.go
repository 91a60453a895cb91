package ingestion

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/index"
)

// embeddingProcessor embeds the chunks and builds the document index.
type embeddingProcessor struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder ai.Embedder, pool *ants.Pool, batchSize int, logger *slog.Logger) *embeddingProcessor {
	return &embeddingProcessor{
		embedder:  embedder,
		pool:      pool,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}
}

func (ep *embeddingProcessor) name() string { return "embeddings" }

// process generates embeddings for every chunk of the build.
func (ep *embeddingProcessor) process(ctx context.Context, b *build) error {
	ep.logger.Info("processing chunks for embeddings", "document", b.doc.Id, "chunks", len(b.chunks))

	idx, err := index.Build(ctx, b.doc.Id, ep.embedder, b.chunks,
		index.WithPool(ep.pool),
		index.WithBatchSize(ep.batchSize),
		index.WithLogger(ep.logger),
	)
	if err != nil {
		ep.logger.Error("error generating embeddings", "document", b.doc.Id, "err", err)
		return err
	}
	b.index = idx
	return nil
}
