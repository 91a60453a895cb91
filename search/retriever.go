package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/lexicon"
)

// Retriever finds the chunks of an index that best answer a query.
type Retriever struct {
	embedder ai.Embedder
	config   Config
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "search")
		return nil
	}
}

// NewRetriever creates a retriever that embeds queries with embedder.
func NewRetriever(embedder ai.Embedder, config Config, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		embedder: embedder,
		config:   config,
		logger:   slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Config returns the retrieval settings.
func (r *Retriever) Config() Config {
	return r.config
}

// Retrieve returns the TopK chunks most similar to queryText with an aggregate
// confidence. keywords are the phrases of the query's type; a hit on one of them
// in the best chunk corroborates the match.
func (r *Retriever) Retrieve(ctx context.Context, idx *index.Index, queryText string, keywords []string) (*core.RetrievalResult, error) {
	return r.RetrieveWithMonitor(ctx, idx, queryText, keywords, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage of the process.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, idx *index.Index, queryText string, keywords []string, monitor RetrievalMonitor) (*core.RetrievalResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if idx.ModelID() != r.embedder.ModelID() {
		return nil, fmt.Errorf("%w: index %q, query %q", ErrModelMismatch, idx.ModelID(), r.embedder.ModelID())
	}

	monitor.Start(queryText)

	vector, err := r.embedder.EmbedText(ctx, queryText)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", queryText, "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(vector)

	hits, err := idx.Query(vector, r.config.TopK)
	if err != nil {
		r.logger.Error("error querying index", "document", idx.DocumentID(), "err", err)
		return nil, err
	}
	monitor.AfterSimilaritySearch(hits)

	result := r.score(hits, queryText, keywords)
	monitor.AfterScoring(result.TopSimilarity, result.Agreement, result.Lexical)

	r.logger.Debug("retrieval complete",
		"document", idx.DocumentID(),
		"hits", len(hits),
		"top", result.TopSimilarity,
		"confidence", result.Confidence,
		"lowConfidence", result.LowConfidence)

	monitor.Finish(result)
	return result, nil
}

func (r *Retriever) score(hits []core.Hit, queryText string, keywords []string) *core.RetrievalResult {
	result := &core.RetrievalResult{Hits: hits}
	if len(hits) == 0 {
		result.LowConfidence = true
		return result
	}

	similarities := make([]float64, len(hits))
	for i, h := range hits {
		similarities[i] = h.Similarity
	}
	result.TopSimilarity = similarities[0]
	result.Agreement = Agreement(similarities)
	result.Lexical = Lexical(queryText, keywords, hits[0].Chunk.Text)

	c := r.config
	confidence := (c.TopWeight*result.TopSimilarity +
		c.AgreementWeight*result.Agreement +
		c.LexicalWeight*result.Lexical) / c.weightSum()

	if result.TopSimilarity < c.MinSimilarity {
		result.LowConfidence = true
		confidence = min(confidence, result.TopSimilarity)
	}
	result.Confidence = clamp01(confidence)
	return result
}

// Agreement measures how consistently the hits match: the mean similarity,
// discounted by the coefficient of variation. A single hit agrees with itself.
func Agreement(similarities []float64) float64 {
	switch len(similarities) {
	case 0:
		return 0
	case 1:
		return clamp01(similarities[0])
	}

	var sum float64
	for _, s := range similarities {
		sum += s
	}
	mean := sum / float64(len(similarities))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, s := range similarities {
		variance += (s - mean) * (s - mean)
	}
	stddev := math.Sqrt(variance / float64(len(similarities)))

	return clamp01(mean * (1 - min(1, stddev/mean)))
}

// Lexical scores how well text corroborates the query: half for containing
// any of the type keywords and half for covering the query's content words.
// Without keywords the coverage alone is used.
func Lexical(queryText string, keywords []string, text string) float64 {
	coverage := lexicon.Coverage(lexicon.Terms(queryText), lexicon.Terms(text))
	phrases := lexicon.NewPhrases(keywords)
	if len(phrases) == 0 {
		return coverage
	}

	var keywordHit float64
	if lexicon.AnyIn(phrases, lexicon.Words(text)) {
		keywordHit = 1
	}
	return 0.5*keywordHit + 0.5*coverage
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
