package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.IndexRepository {
	t.Helper()
	repo, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(content, model string) *storage.IndexRecord {
	id := core.IDFromContent("txt:" + content)
	chunks := []*core.Chunk{
		{Id: core.IDFromContent(content + "#0"), DocumentId: id, Ordinal: 0, Text: content, Start: 0, End: len([]rune(content)), Page: 1, EndPage: 1, SegmentKind: core.SegmentPage},
		{Id: core.IDFromContent(content + "#1"), DocumentId: id, Ordinal: 1, Text: "Claims must be filed within 30 days.", Start: 10, End: 46, Page: 2, EndPage: 2, SegmentKind: core.SegmentPage},
	}
	return &storage.IndexRecord{
		Meta: storage.IndexMeta{
			DocumentId:     id,
			Format:         core.FormatTXT,
			Kind:           core.KindInsurancePolicy,
			ByteLength:     len(content),
			ExtractedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			IndexedAt:      time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
			EmbeddingModel: model,
			Dimension:      3,
			Chunks:         len(chunks),
			Fields:         1,
		},
		Segments: []core.Segment{
			{Kind: core.SegmentPage, Number: 1, Text: content},
			{Kind: core.SegmentPage, Number: 2, Text: "Claims must be filed within 30 days."},
		},
		Chunks: chunks,
		Fields: []core.StructuredField{
			{Key: core.FieldClaimsProcess, Value: "Claims must be filed within 30 days.", ChunkId: chunks[1].Id, Ordinal: 1, Page: 2, Ref: "page 2", Confidence: 0.8},
		},
		Vectors: [][]float32{{1, 0, 0}, {0, 0.6, 0.8}},
	}
}

func TestSaveAndLoadIndex(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := testRecord("The coverage limit is $50,000.", "model-a")

	require.NoError(t, repo.SaveIndex(ctx, record))

	loaded, err := repo.LoadIndex(ctx, record.Meta.DocumentId, "model-a")
	require.NoError(t, err)
	assert.Equal(t, record.Meta, loaded.Meta)
	assert.Equal(t, record.Segments, loaded.Segments)
	assert.Equal(t, record.Fields, loaded.Fields)
	assert.Equal(t, record.Vectors, loaded.Vectors)
	require.Len(t, loaded.Chunks, 2)
	for i := range record.Chunks {
		assert.Equal(t, *record.Chunks[i], *loaded.Chunks[i])
	}

	snap, err := loaded.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "model-a", snap.Index.ModelID())
	assert.Equal(t, 3, snap.Index.Dimension())
	assert.Equal(t, record.Meta.DocumentId, snap.Document.Id)
}

func TestLoadIndex_Errors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := testRecord("Policy text.", "model-a")
	require.NoError(t, repo.SaveIndex(ctx, record))

	tests := []struct {
		name  string
		id    core.ID
		model string
		want  error
	}{
		{name: "unknown document", id: core.IDFromContent("nope"), model: "model-a", want: storage.ErrNotFound},
		{name: "other embedding model", id: record.Meta.DocumentId, model: "model-b", want: storage.ErrStaleIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.LoadIndex(ctx, tt.id, tt.model)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSaveIndex_ReplacesOtherModels(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := testRecord("Policy text.", "model-a")
	require.NoError(t, repo.SaveIndex(ctx, old))

	updated := testRecord("Policy text.", "model-b")
	updated.Vectors = [][]float32{{0, 1, 0}, {0, 0, 1}}
	require.NoError(t, repo.SaveIndex(ctx, updated))

	_, err := repo.LoadIndex(ctx, old.Meta.DocumentId, "model-a")
	require.ErrorIs(t, err, storage.ErrStaleIndex)

	loaded, err := repo.LoadIndex(ctx, old.Meta.DocumentId, "model-b")
	require.NoError(t, err)
	assert.Equal(t, updated.Vectors, loaded.Vectors)

	impl := repo.(*IndexRepository)
	err = impl.backend.WithTx(func(tx *badger.Txn) error {
		assert.Len(t, prefixKeys(tx, makePartialVectorKey(old.Meta.DocumentId)), 1)
		return nil
	}, false)
	require.NoError(t, err)
}

func TestSaveIndex_RejectsVectorCountMismatch(t *testing.T) {
	repo := newTestRepo(t)
	record := testRecord("Policy text.", "model-a")
	record.Vectors = record.Vectors[:1]

	err := repo.SaveIndex(context.Background(), record)
	require.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestLoadDocument(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := testRecord("Policy text.", "model-a")
	require.NoError(t, repo.SaveIndex(ctx, record))

	doc, err := repo.LoadDocument(ctx, record.Meta.DocumentId)
	require.NoError(t, err)
	assert.Equal(t, record.Meta.DocumentId, doc.Id)
	assert.Equal(t, core.KindInsurancePolicy, doc.Kind)
	assert.Equal(t, record.Segments, doc.Segments)
	assert.Equal(t, record.Meta.ExtractedAt, doc.ExtractedAt)

	_, err = repo.LoadDocument(ctx, core.IDFromContent("missing"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListIndexes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	metas, err := repo.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.SaveIndex(ctx, testRecord(fmt.Sprintf("document %d", i), "model-a")))
	}

	metas, err = repo.ListIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 5)
	for i := 1; i < len(metas); i++ {
		assert.Less(t, metas[i-1].DocumentId, metas[i].DocumentId)
	}
}

func TestDeleteIndex(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := testRecord("Policy text.", "model-a")
	require.NoError(t, repo.SaveIndex(ctx, record))

	require.NoError(t, repo.DeleteIndex(ctx, record.Meta.DocumentId))

	_, err := repo.LoadIndex(ctx, record.Meta.DocumentId, "model-a")
	require.ErrorIs(t, err, storage.ErrNotFound)
	metas, err := repo.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)

	err = repo.DeleteIndex(ctx, record.Meta.DocumentId)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_ClosedAndCancelled(t *testing.T) {
	repo, err := NewMemoryRepository()
	require.NoError(t, err)
	record := testRecord("Policy text.", "model-a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, repo.SaveIndex(ctx, record), context.Canceled)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	err = repo.SaveIndex(context.Background(), record)
	require.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = repo.ListIndexes(context.Background())
	require.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewRepository_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	record := testRecord("Policy text.", "model-a")

	repo, err := NewRepository(dir, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SaveIndex(ctx, record))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(dir, nil)
	require.NoError(t, err)
	defer repo.Close()

	loaded, err := repo.LoadIndex(ctx, record.Meta.DocumentId, "model-a")
	require.NoError(t, err)
	assert.Equal(t, record.Meta, loaded.Meta)
}

func TestIndexRepository_SharedBackend(t *testing.T) {
	backend, err := OpenBackend("", true, nil)
	require.NoError(t, err)
	defer backend.Close()

	repo := NewIndexRepository(backend)
	require.NoError(t, repo.Close())
	assert.False(t, backend.IsClosed())
}

func TestIndexRepository_Concurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := testRecord(fmt.Sprintf("concurrent %d", i), "model-a")
			assert.NoError(t, repo.SaveIndex(ctx, record))
			_, err := repo.LoadIndex(ctx, record.Meta.DocumentId, "model-a")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	metas, err := repo.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 8)
}
