// Package synthesis turns retrieved evidence into a grounded answer, either
// through a language model or, when none is usable, as an extractive excerpt.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// excerptRunes bounds the excerpt attached to each evidence entry.
const excerptRunes = 240

// FallbackReason explains why an answer was not produced by the language model.
type FallbackReason string

const (
	ReasonNoLLM       FallbackReason = "no-llm"
	ReasonNoEvidence  FallbackReason = "no-evidence"
	ReasonTimeout     FallbackReason = "timeout"
	ReasonRateLimited FallbackReason = "rate-limited"
	ReasonError       FallbackReason = "error"
	ReasonEmpty       FallbackReason = "empty-response"
)

// Synthesizer answers questions from retrieval results.
type Synthesizer struct {
	generator  ai.Generator
	config     Config
	logger     *slog.Logger
	onFallback func(FallbackReason)
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "synthesis")
	}
}

// WithFallbackObserver registers a callback invoked whenever an answer falls
// back to the extractive path.
func WithFallbackObserver(fn func(FallbackReason)) Option {
	return func(s *Synthesizer) {
		s.onFallback = fn
	}
}

// New creates a synthesizer. A nil generator is allowed and makes every
// answer extractive.
func New(generator ai.Generator, config Config, opts ...Option) (*Synthesizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Synthesizer{
		generator: generator,
		config:    config,
		logger:    slog.Default().With("component", "synthesis"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LLMEnabled reports whether a generator is configured.
func (s *Synthesizer) LLMEnabled() bool {
	return s.generator != nil
}

// Synthesize answers query from the retrieval result. It never fails: any
// generator problem degrades to an extractive answer from the top chunk.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, qt core.QueryType, result *core.RetrievalResult) *core.Answer {
	if result == nil {
		result = &core.RetrievalResult{LowConfidence: true}
	}
	if len(result.Hits) == 0 {
		return s.fallback(query, qt, result, ReasonNoEvidence, nil)
	}
	if s.generator == nil {
		return s.fallback(query, qt, result, ReasonNoLLM, nil)
	}

	evidenceText, evidence := BuildContext(result.Hits, s.config.MaxContextTokens, s.config.CharsPerToken)
	if len(evidence) == 0 {
		s.logger.Warn("no evidence fits the context budget, using extractive answer", "queryType", qt, "maxContextTokens", s.config.MaxContextTokens)
		return s.fallback(query, qt, result, ReasonNoEvidence, nil)
	}
	req := ai.Request{
		System:   SystemPrompt(qt),
		Prompt:   userPrompt(query, evidenceText),
		Evidence: evidence,
	}

	generation, err := s.generate(ctx, req)
	if err != nil {
		reason := ReasonError
		switch {
		case errors.Is(err, core.ErrLLMTimeout), errors.Is(err, context.DeadlineExceeded):
			reason = ReasonTimeout
		case errors.Is(err, core.ErrRateLimited):
			reason = ReasonRateLimited
		}
		s.logger.Warn("generation failed, using extractive answer", "queryType", qt, "reason", reason, "err", err)
		return s.fallback(query, qt, result, reason, err)
	}

	text := stripConfidence(generation.Text)
	if text == "" {
		s.logger.Warn("model returned an empty answer, using extractive answer", "queryType", qt)
		return s.fallback(query, qt, result, ReasonEmpty, nil)
	}

	confidence := result.Confidence
	reported, hasReported := ParseConfidence(generation.Text)
	if hasReported {
		confidence = min(confidence, reported)
	}

	answer := &core.Answer{
		Text:          text,
		Confidence:    confidence,
		Evidence:      evidenceFor(result.Hits[:len(evidence)]),
		Path:          core.PathLLM,
		QueryType:     qt,
		LowConfidence: result.LowConfidence,
		TokensUsed:    generation.TokensUsed,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "path: %s, answer generated from %d evidence chunks within a %d token context budget\n",
		core.PathLLM, len(evidence), s.config.MaxContextTokens)
	if hasReported {
		fmt.Fprintf(&b, "model reported confidence %.2f\n", reported)
	}
	writeBreakdown(&b, result, answer)
	answer.Explanation = strings.TrimRight(b.String(), "\n")
	return answer
}

func (s *Synthesizer) generate(ctx context.Context, req ai.Request) (*ai.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var generation *ai.Generation
	err := ai.RetryWithBackoff(ctx, func() error {
		g, err := s.generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		generation = g
		return nil
	}, ai.RetryPolicy{
		MaxAttempts: s.config.MaxAttempts,
		BaseDelay:   s.config.BaseDelay,
		Retryable:   ai.IsTransient,
	})
	if err != nil {
		return nil, err
	}
	return generation, nil
}

func (s *Synthesizer) fallback(query string, qt core.QueryType, result *core.RetrievalResult, reason FallbackReason, cause error) *core.Answer {
	if s.onFallback != nil {
		s.onFallback(reason)
	}

	answer := &core.Answer{
		Path:          core.PathExtractive,
		QueryType:     qt,
		LowConfidence: true,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "path: %s (%s)", core.PathExtractive, reason)
	if cause != nil {
		fmt.Fprintf(&b, ": %v", cause)
	}
	b.WriteString("\n")

	top := result.Top()
	if top == nil {
		answer.Text = "No passage of the document matched this question."
		writeBreakdown(&b, result, answer)
		answer.Explanation = strings.TrimRight(b.String(), "\n")
		return answer
	}

	answer.Text = Excerpt(top.Chunk.Text, query, s.config.ExtractiveWindow)
	if answer.Text == "" {
		answer.Text = "No passage of the document matched this question."
	}
	answer.Confidence = min(result.Confidence, top.Similarity)
	answer.LowConfidence = result.LowConfidence
	answer.Evidence = evidenceFor(result.Hits[:1])
	fmt.Fprintf(&b, "excerpt of at most %d characters taken from the top ranked chunk\n", s.config.ExtractiveWindow)
	writeBreakdown(&b, result, answer)
	answer.Explanation = strings.TrimRight(b.String(), "\n")
	return answer
}

// Unanswerable builds the zero-confidence answer returned when the document
// could not be searched at all.
func Unanswerable(qt core.QueryType, cause error) *core.Answer {
	explanation := fmt.Sprintf("path: %s (retrieval failed)", core.PathExtractive)
	if cause != nil {
		explanation += ": " + cause.Error()
	}
	return &core.Answer{
		Text:          "The document could not be searched for this question.",
		Path:          core.PathExtractive,
		QueryType:     qt,
		LowConfidence: true,
		Explanation:   explanation,
	}
}

func evidenceFor(hits []core.Hit) []core.Evidence {
	evidence := make([]core.Evidence, len(hits))
	for i, h := range hits {
		evidence[i] = core.Evidence{
			ChunkId:    h.Chunk.Id,
			Ordinal:    h.Chunk.Ordinal,
			Page:       h.Chunk.Page,
			Ref:        h.Chunk.Ref(),
			Rank:       h.Rank,
			Similarity: h.Similarity,
			Excerpt:    cutRunes(strings.TrimSpace(h.Chunk.Text), excerptRunes),
		}
	}
	return evidence
}

// writeBreakdown lists the chunks the answer used and the confidence signals.
func writeBreakdown(b *strings.Builder, result *core.RetrievalResult, answer *core.Answer) {
	for _, ev := range answer.Evidence {
		fmt.Fprintf(b, "evidence rank %d: chunk %d, %s, similarity %.3f\n", ev.Rank, ev.Ordinal, ev.Ref, ev.Similarity)
	}
	if unused := len(result.Hits) - len(answer.Evidence); unused > 0 {
		fmt.Fprintf(b, "%d lower ranked chunks retrieved but not used\n", unused)
	}
	fmt.Fprintf(b, "confidence %.3f (retrieval %.3f: top %.3f, agreement %.3f, lexical %.3f)\n",
		answer.Confidence, result.Confidence, result.TopSimilarity, result.Agreement, result.Lexical)
	if result.LowConfidence {
		b.WriteString("low confidence: the best match is weak\n")
	}
}
