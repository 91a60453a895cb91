package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/docqa/extract"
)

// fieldProcessor detects the document kind and extracts structured fields
// from the chunked text.
type fieldProcessor struct {
	extractor *extract.Extractor
	logger    *slog.Logger
}

var _ processor = (*fieldProcessor)(nil)

func newFieldProcessor(e *extract.Extractor, logger *slog.Logger) *fieldProcessor {
	return &fieldProcessor{extractor: e, logger: logger.With("processor", "fields")}
}

func (fp *fieldProcessor) name() string { return "fields" }

func (fp *fieldProcessor) process(ctx context.Context, b *build) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// the parsed document is shared with the caller, so the kind goes on a copy
	doc := *b.doc
	doc.Kind = fp.extractor.DetectKind(&doc)

	fields := fp.extractor.Extract(&doc, b.chunks)
	fp.logger.Debug("fields extracted", "document", doc.Id, "kind", doc.Kind, "fields", len(fields))

	b.doc = &doc
	b.fields = fields
	return nil
}
