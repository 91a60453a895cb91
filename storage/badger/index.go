package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// IndexRepository implements storage.IndexRepository for BadgerDB.
type IndexRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a repository on an open backend.
// Closing the repository leaves the backend open.
func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{backend: backend}
}

// NewRepository opens (or creates) a database directory and returns a repository
// that owns it.
func NewRepository(path string, logger *slog.Logger) (storage.IndexRepository, error) {
	backend, err := OpenBackend(path, false, logger)
	if err != nil {
		return nil, err
	}
	return &IndexRepository{backend: backend, ownsBackend: true}, nil
}

// Close closes the backend if the repository opened it.
func (r *IndexRepository) Close() error {
	if !r.ownsBackend || r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}

func (r *IndexRepository) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// SaveIndex stores every part of the record in one transaction and drops
// vectors left by other embedding models.
func (r *IndexRepository) SaveIndex(ctx context.Context, record *storage.IndexRecord) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if len(record.Vectors) != len(record.Chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", storage.ErrSerializationFailed, len(record.Vectors), len(record.Chunks))
	}

	id := record.Meta.DocumentId
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range prefixKeys(tx, makePartialVectorKey(id)) {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		entries := []struct {
			key   []byte
			value []byte
		}{
			{makeDocKey(metaPrefix, id), storage.MarshalMeta(&record.Meta)},
			{makeDocKey(segmentPrefix, id), storage.MarshalSegments(record.Segments)},
			{makeDocKey(chunkPrefix, id), storage.MarshalChunks(record.Chunks)},
			{makeDocKey(fieldPrefix, id), storage.MarshalFields(record.Fields)},
			{makeVectorKey(id, record.Meta.EmbeddingModel), storage.MarshalVectors(record.Vectors)},
		}
		for _, e := range entries {
			if err := tx.Set(e.key, e.value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.backend.logger.Debug("index saved", "document", id, "model", record.Meta.EmbeddingModel, "chunks", len(record.Chunks))
	return nil
}

// LoadIndex reads a document's full index for modelID.
func (r *IndexRepository) LoadIndex(ctx context.Context, id core.ID, modelID string) (*storage.IndexRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var record *storage.IndexRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := readMeta(tx, id)
		if err != nil {
			return err
		}
		if meta.EmbeddingModel != modelID {
			return fmt.Errorf("%w: %s was indexed with %q, not %q", storage.ErrStaleIndex, id, meta.EmbeddingModel, modelID)
		}

		record = &storage.IndexRecord{Meta: *meta}
		if record.Segments, err = readValue(tx, makeDocKey(segmentPrefix, id), storage.UnmarshalSegments); err != nil {
			return err
		}
		if record.Chunks, err = readValue(tx, makeDocKey(chunkPrefix, id), storage.UnmarshalChunks); err != nil {
			return err
		}
		if record.Fields, err = readValue(tx, makeDocKey(fieldPrefix, id), storage.UnmarshalFields); err != nil {
			return err
		}
		record.Vectors, err = readValue(tx, makeVectorKey(id, modelID), storage.UnmarshalVectors)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// LoadDocument reads the stored segments without touching vectors.
func (r *IndexRepository) LoadDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var record storage.IndexRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := readMeta(tx, id)
		if err != nil {
			return err
		}
		record.Meta = *meta
		record.Segments, err = readValue(tx, makeDocKey(segmentPrefix, id), storage.UnmarshalSegments)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return record.Document(), nil
}

// ListIndexes returns the metadata of all stored documents in id order.
func (r *IndexRepository) ListIndexes(ctx context.Context) ([]*storage.IndexMeta, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var metas []*storage.IndexMeta
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var meta *storage.IndexMeta
			err := iter.Item().Value(func(val []byte) error {
				var err error
				meta, err = storage.UnmarshalMeta(val)
				return err
			})
			if err != nil {
				return err
			}
			metas = append(metas, meta)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// DeleteIndex removes the document and all of its vectors.
func (r *IndexRepository) DeleteIndex(ctx context.Context, id core.ID) error {
	if err := r.check(ctx); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeDocKey(metaPrefix, id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		keys := prefixKeys(tx, makePartialVectorKey(id))
		for _, prefix := range []string{metaPrefix, segmentPrefix, chunkPrefix, fieldPrefix} {
			keys = append(keys, makeDocKey(prefix, id))
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func readMeta(tx *badger.Txn, id core.ID) (*storage.IndexMeta, error) {
	return readValue(tx, makeDocKey(metaPrefix, id), storage.UnmarshalMeta)
}

// readValue loads and decodes one key. A missing key maps to storage.ErrNotFound.
func readValue[T any](tx *badger.Txn, key []byte, decode func([]byte) (T, error)) (T, error) {
	var result T
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return result, storage.ErrNotFound
		}
		return result, err
	}
	err = item.Value(func(val []byte) error {
		var err error
		result, err = decode(val)
		return err
	})
	return result, err
}
