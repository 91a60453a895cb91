package storage

import (
	"fmt"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
)

// RecordFromSnapshot captures a published snapshot for persistence.
func RecordFromSnapshot(snap *index.Snapshot) *IndexRecord {
	doc := snap.Document
	return &IndexRecord{
		Meta: IndexMeta{
			DocumentId:     doc.Id,
			Format:         doc.Format,
			Kind:           doc.Kind,
			ByteLength:     doc.ByteLength,
			ExtractedAt:    doc.ExtractedAt,
			IndexedAt:      snap.IndexedAt,
			EmbeddingModel: snap.Index.ModelID(),
			Dimension:      snap.Index.Dimension(),
			Chunks:         len(snap.Chunks),
			Fields:         len(snap.Fields),
		},
		Segments: doc.Segments,
		Chunks:   snap.Chunks,
		Fields:   snap.Fields,
		Vectors:  snap.Index.Vectors(),
	}
}

// Document rebuilds the parsed document.
func (r *IndexRecord) Document() *core.Document {
	return &core.Document{
		Id:          r.Meta.DocumentId,
		Format:      r.Meta.Format,
		Kind:        r.Meta.Kind,
		Segments:    r.Segments,
		ByteLength:  r.Meta.ByteLength,
		ExtractedAt: r.Meta.ExtractedAt,
	}
}

// Snapshot restores the queryable snapshot without re-embedding.
func (r *IndexRecord) Snapshot() (*index.Snapshot, error) {
	idx, err := index.FromVectors(r.Meta.DocumentId, r.Meta.EmbeddingModel, r.Chunks, r.Vectors)
	if err != nil {
		return nil, fmt.Errorf("restoring index of %s: %w", r.Meta.DocumentId, err)
	}
	if idx.Dimension() != r.Meta.Dimension {
		return nil, fmt.Errorf("%w: stored dimension %d, vectors have %d", index.ErrDimensionMismatch, r.Meta.Dimension, idx.Dimension())
	}
	return &index.Snapshot{
		Document:  r.Document(),
		Chunks:    r.Chunks,
		Index:     idx,
		Fields:    r.Fields,
		IndexedAt: r.Meta.IndexedAt,
	}, nil
}
