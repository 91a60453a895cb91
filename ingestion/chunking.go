package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/docqa/chunker"
)

// chunkProcessor splits the document text into overlapping chunks.
type chunkProcessor struct {
	chunker *chunker.Chunker
	logger  *slog.Logger
}

var _ processor = (*chunkProcessor)(nil)

func newChunkProcessor(c *chunker.Chunker, logger *slog.Logger) *chunkProcessor {
	return &chunkProcessor{chunker: c, logger: logger.With("processor", "chunks")}
}

func (cp *chunkProcessor) name() string { return "chunks" }

func (cp *chunkProcessor) process(_ context.Context, b *build) error {
	chunks, err := cp.chunker.Split(b.doc)
	if err != nil {
		cp.logger.Error("error splitting document", "document", b.doc.Id, "err", err)
		return err
	}
	cp.logger.Debug("document split", "document", b.doc.Id, "chunks", len(chunks))
	b.chunks = chunks
	return nil
}
