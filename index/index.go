// Package index holds the per-document embedding index and the registry of
// published document snapshots.
//
// An Index stores one row per chunk in a single contiguous matrix. Rows are
// unit length, so cosine similarity is a dot product. Queries scan every row;
// per-document chunk counts are small enough that an approximate structure
// would cost more than it saves.
package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/poiesic/docqa/core"
)

// Index maps chunk ordinals to embeddings. It is immutable once returned by
// Build or FromVectors and safe for concurrent queries.
type Index struct {
	documentID core.ID
	modelID    string
	dim        int
	chunks     []*core.Chunk // not owned; the snapshot's document owns them
	matrix     []float32     // len(chunks) rows of dim values
}

// FromVectors restores an index from vectors computed earlier by the model
// identified by modelID. vectors[i] belongs to chunks[i].
func FromVectors(documentID core.ID, modelID string, chunks []*core.Chunk, vectors [][]float32) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrVectorCountMismatch, len(vectors), len(chunks))
	}
	dim, err := core.ValidateVectors(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	}

	idx := &Index{
		documentID: documentID,
		modelID:    modelID,
		dim:        dim,
		chunks:     chunks,
		matrix:     make([]float32, len(chunks)*dim),
	}
	for i, v := range vectors {
		copy(idx.row(i), v)
		normalize(idx.row(i))
	}
	return idx, nil
}

// DocumentID returns the indexed document's id.
func (idx *Index) DocumentID() core.ID {
	return idx.documentID
}

// ModelID returns the id of the embedding model that produced the vectors.
func (idx *Index) ModelID() string {
	return idx.modelID
}

// Dimension returns the vector width.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Len returns the number of indexed chunks. Safe on a nil index.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

// Chunks returns the indexed chunks in ordinal order.
func (idx *Index) Chunks() []*core.Chunk {
	return idx.chunks
}

// Vector returns a copy of the stored (normalised) vector for ordinal i.
func (idx *Index) Vector(i int) []float32 {
	return slices.Clone(idx.row(i))
}

// Vectors returns copies of every stored vector, for persistence.
func (idx *Index) Vectors() [][]float32 {
	out := make([][]float32, idx.Len())
	for i := range out {
		out[i] = idx.Vector(i)
	}
	return out
}

// Query returns the k chunks most similar to vector, best first.
// Similarity is cosine clamped to [0,1]; equal similarities keep ordinal order.
// A k larger than the index returns every chunk.
func (idx *Index) Query(vector []float32, k int) ([]core.Hit, error) {
	if idx.Len() == 0 || idx.dim == 0 {
		return nil, core.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, k)
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), idx.dim)
	}

	q := slices.Clone(vector)
	normalize(q)

	type scored struct {
		ordinal    int
		similarity float64
	}
	scores := make([]scored, len(idx.chunks))
	for i := range idx.chunks {
		scores[i] = scored{ordinal: i, similarity: clamp01(dotProduct(q, idx.row(i)))}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	})

	k = min(k, len(scores))
	hits := make([]core.Hit, k)
	for rank, s := range scores[:k] {
		hits[rank] = core.Hit{Chunk: idx.chunks[s.ordinal], Similarity: s.similarity, Rank: rank}
	}
	return hits, nil
}

func (idx *Index) row(i int) []float32 {
	return idx.matrix[i*idx.dim : (i+1)*idx.dim : (i+1)*idx.dim]
}

// dotProduct accumulates in float64.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize scales v to unit length in place. Zero vectors are left as is.
func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
