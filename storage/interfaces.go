package storage

import (
	"context"
	"time"

	"github.com/poiesic/docqa/core"
)

// IndexMeta describes a stored index without loading it.
type IndexMeta struct {
	DocumentId     core.ID
	Format         core.Format
	Kind           core.DocumentKind
	ByteLength     int
	ExtractedAt    time.Time
	IndexedAt      time.Time
	EmbeddingModel string
	Dimension      int
	Chunks         int
	Fields         int
}

// IndexRecord is everything persisted for one document.
type IndexRecord struct {
	Meta     IndexMeta
	Segments []core.Segment
	Chunks   []*core.Chunk
	Fields   []core.StructuredField
	Vectors  [][]float32 // one per chunk, produced by Meta.EmbeddingModel
}

// IndexRepository persists document indexes.
// Implementations must be thread-safe and support concurrent access.
type IndexRepository interface {
	// SaveIndex stores the record, replacing any previous index of the document
	// along with vectors of other embedding models.
	SaveIndex(ctx context.Context, record *IndexRecord) error

	// LoadIndex loads a document's index for the given embedding model.
	// Returns ErrNotFound if the document is unknown and ErrStaleIndex if its
	// vectors were produced by another model.
	LoadIndex(ctx context.Context, id core.ID, modelID string) (*IndexRecord, error)

	// LoadDocument loads the parsed document regardless of embedding model.
	// Returns ErrNotFound if the document is unknown.
	LoadDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListIndexes returns the metadata of every stored index ordered by document id.
	ListIndexes(ctx context.Context) ([]*IndexMeta, error)

	// DeleteIndex removes everything stored for a document.
	// Returns ErrNotFound if the document is unknown.
	DeleteIndex(ctx context.Context, id core.ID) error

	// Close closes the storage backend and releases resources.
	Close() error
}
