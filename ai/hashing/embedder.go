// Package hashing provides a deterministic, dependency-free text embedder.
//
// Each content word and each adjacent word pair is hashed into one of Dimension
// buckets with FNV-1a. Bucket weights use sublinear term frequency (1 + ln tf)
// and the vector is L2-normalised, so cosine similarity reduces to a dot product
// and never goes negative.
package hashing

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/poiesic/docqa/lexicon"
)

// DefaultDimension is the vector width used when none is configured.
const DefaultDimension = 512

// bigramWeight scales word-pair features relative to single words.
const bigramWeight = 0.5

// ErrInvalidDimension is returned for a non-positive dimension.
var ErrInvalidDimension = errors.New("embedding dimension must be positive")

// Embedder implements ai.Embedder without any network calls.
type Embedder struct {
	dim int
}

// Option configures an Embedder.
type Option func(*Embedder) error

// WithDimension sets the vector width.
func WithDimension(dim int) Option {
	return func(e *Embedder) error {
		if dim <= 0 {
			return ErrInvalidDimension
		}
		e.dim = dim
		return nil
	}
}

// New creates a hashing embedder.
func New(opts ...Option) (*Embedder, error) {
	e := &Embedder{dim: DefaultDimension}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ModelID encodes the algorithm and dimension so persisted vectors are
// invalidated when either changes.
func (e *Embedder) ModelID() string {
	return fmt.Sprintf("hashing-tf-v1-%d", e.dim)
}

// Dimension returns the vector width.
func (e *Embedder) Dimension() int {
	return e.dim
}

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Embed(text), nil
}

// EmbedTexts embeds texts in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.Embed(text)
	}
	return vectors, nil
}

// Embed computes the vector for text. Text without content words yields the
// zero vector.
func (e *Embedder) Embed(text string) []float32 {
	terms := lexicon.Terms(text)
	counts := make(map[string]float64, 2*len(terms))
	for i, term := range terms {
		counts[term]++
		if i > 0 {
			counts[terms[i-1]+" "+term]++ // pairs carry a space so they never collide with words
		}
	}

	acc := make([]float64, e.dim)
	for feature, tf := range counts {
		weight := 1 + math.Log(tf)
		if isPair(feature) {
			weight *= bigramWeight
		}
		acc[e.bucket(feature)] += weight
	}

	var sumSquares float64
	for _, v := range acc {
		sumSquares += v * v
	}
	vector := make([]float32, e.dim)
	if sumSquares == 0 {
		return vector
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range acc {
		vector[i] = float32(v / norm)
	}
	return vector
}

func (e *Embedder) bucket(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dim))
}

func isPair(feature string) bool {
	return strings.IndexByte(feature, ' ') >= 0
}
