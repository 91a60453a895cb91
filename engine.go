// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package docqa answers questions about documents. An Engine ingests PDF, DOCX
// and plain-text documents into per-document semantic indexes, answers cheap
// questions from extracted fields, and otherwise retrieves ranked evidence for
// a grounded language-model answer with an extractive fallback.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/hashing"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/metrics"
	"github.com/poiesic/docqa/parser"
	"github.com/poiesic/docqa/reindex"
	"github.com/poiesic/docqa/router"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/synthesis"
)

// Engine is safe for concurrent use. Each document is published as an
// immutable snapshot; queries never block ingestion of other documents.
type Engine struct {
	config    *config.Config
	embedder  ai.Embedder
	pipeline  *ingestion.Pipeline
	router    *router.Router
	retriever *search.Retriever
	synth     *synthesis.Synthesizer
	registry  *index.Registry
	provider  ai.Provider
	store     storage.IndexRepository
	ownsStore bool
	metrics   *metrics.Metrics
	base      *slog.Logger // unscoped, handed to components
	logger    *slog.Logger

	mu     sync.Mutex
	stale  map[core.ID]string // stored documents indexed by another embedding model
	closed atomic.Bool
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	store        storage.IndexRepository
	embedder     ai.Embedder
	generator    ai.Generator
	generatorSet bool
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// WithStore persists indexes in repo. The caller keeps ownership of repo.
// Without it, a configured storage path is opened and owned by the engine.
func WithStore(repo storage.IndexRepository) Option {
	return func(o *options) {
		o.store = repo
	}
}

// WithEmbedder overrides the embedder chosen from the AI configuration.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithGenerator overrides the language model. A nil generator disables it,
// so every retrieval answer is extractive.
func WithGenerator(generator ai.Generator) Option {
	return func(o *options) {
		o.generator = generator
		o.generatorSet = true
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wires an engine from cfg and restores persisted indexes, if any.
// A nil cfg uses config.Default().
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	e := &Engine{
		config:   cfg,
		registry: index.NewRegistry(),
		metrics:  o.metrics,
		base:     o.logger,
		logger:   o.logger.With("component", "engine"),
		stale:    make(map[core.ID]string),
	}
	if err := e.wire(o); err != nil {
		e.release()
		return nil, err
	}
	if err := e.restore(ctx); err != nil {
		e.release()
		return nil, err
	}

	e.metrics.SetIndexedDocuments(e.registry.Len())
	e.logger.Info("engine ready",
		"embedding_model", e.embedder.ModelID(),
		"llm", e.synth.LLMEnabled(),
		"documents", e.registry.Len(),
		"stale", len(e.stale),
		"persistent", e.store != nil)
	return e, nil
}

func (e *Engine) wire(o *options) error {
	cfg := e.config
	logger := o.logger

	if o.embedder == nil || !o.generatorSet {
		provider, err := openai.NewProvider(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating ai provider: %w", err)
		}
		e.provider = provider
	}

	switch {
	case o.embedder != nil:
		e.embedder = o.embedder
	case cfg.AI.RemoteEmbeddings():
		e.embedder = e.provider.Embedder()
	default:
		local, err := hashing.New(hashing.WithDimension(cfg.Ingestion.HashingDimension))
		if err != nil {
			return err
		}
		e.embedder = local
	}

	generator := o.generator
	if !o.generatorSet {
		generator = e.provider.Generator()
	}

	c, err := chunker.New(cfg.Chunker, chunker.WithLogger(logger))
	if err != nil {
		return err
	}
	extractor, err := extract.New(cfg.Extract, extract.WithLogger(logger))
	if err != nil {
		return err
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithLogger(logger),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	e.pipeline, err = ingestion.NewPipeline(parser.New(parser.WithLogger(logger)), c, extractor, e.embedder, pipelineOpts...)
	if err != nil {
		return err
	}

	if e.router, err = router.New(cfg.Router, router.WithLogger(logger)); err != nil {
		return err
	}
	if e.retriever, err = search.NewRetriever(e.embedder, cfg.Search, search.WithLogger(logger)); err != nil {
		return err
	}
	e.synth, err = synthesis.New(generator, cfg.Synthesis,
		synthesis.WithLogger(logger),
		synthesis.WithFallbackObserver(func(reason synthesis.FallbackReason) {
			e.metrics.RecordFallback(string(reason))
		}))
	if err != nil {
		return err
	}

	switch {
	case o.store != nil:
		e.store = o.store
	case cfg.Storage.Path != "":
		repo, err := badger.NewRepository(cfg.Storage.Path, logger)
		if err != nil {
			return fmt.Errorf("opening index store: %w", err)
		}
		e.store, e.ownsStore = repo, true
	}
	return nil
}

// restore publishes every stored index built by the current embedder and
// remembers the stale ones.
func (e *Engine) restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	metas, err := e.store.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("listing stored indexes: %w", err)
	}

	model := e.embedder.ModelID()
	for _, meta := range metas {
		record, err := e.store.LoadIndex(ctx, meta.DocumentId, model)
		if errors.Is(err, storage.ErrStaleIndex) {
			e.stale[meta.DocumentId] = meta.EmbeddingModel
			continue
		}
		if err == nil {
			var snap *index.Snapshot
			if snap, err = record.Snapshot(); err == nil {
				e.registry.Publish(snap)
				continue
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn("skipping unreadable stored index", "document", meta.DocumentId, "err", err)
	}
	return nil
}

// Ingest parses and indexes a document, returning its content-derived id.
// Re-ingesting identical bytes replaces the previous index.
func (e *Engine) Ingest(ctx context.Context, data []byte, format core.Format) (core.ID, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	snap, err := e.pipeline.Ingest(ctx, data, format)
	return e.publish(ctx, snap, err)
}

// IngestFile ingests a file, detecting the format from its extension.
func (e *Engine) IngestFile(ctx context.Context, path string) (core.ID, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	snap, err := e.pipeline.IngestFile(ctx, path)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
	}
	return e.publish(ctx, snap, err)
}

// publish persists a freshly built snapshot, then makes it queryable.
// Nothing is published when building or persisting fails.
func (e *Engine) publish(ctx context.Context, snap *index.Snapshot, err error) (core.ID, error) {
	if err == nil && e.store != nil {
		if saveErr := e.store.SaveIndex(ctx, storage.RecordFromSnapshot(snap)); saveErr != nil {
			err = fmt.Errorf("persisting index: %w", saveErr)
		}
	}
	e.metrics.RecordIngestion(err)
	if err != nil {
		return 0, err
	}

	id := snap.Document.Id
	e.registry.Publish(snap)
	e.mu.Lock()
	delete(e.stale, id)
	e.mu.Unlock()
	e.metrics.SetIndexedDocuments(e.registry.Len())
	return id, nil
}

// Answer answers a question about one document. Only invalid input and
// unknown documents are errors; every other failure yields a degraded answer.
// A valid hint overrides query classification.
func (e *Engine) Answer(ctx context.Context, docID core.ID, text string, hint core.QueryType) (*core.Answer, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	q := core.Query{Text: text, TypeHint: hint}
	if err := core.ValidateQuery(q); err != nil {
		return nil, err
	}
	snap, err := e.snapshot(docID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	queryID := uuid.NewString()
	logger := e.logger.With("query", queryID, "document", docID)

	var answer *core.Answer
	switch d := e.router.Route(q, snap.Fields).(type) {
	case router.ZeroToken:
		answer = synthesis.FieldAnswer(d.Type, d.Field)
	case router.Retrieve:
		result, err := e.retriever.Retrieve(ctx, snap.Index, text, d.Keywords)
		if err != nil {
			logger.Warn("retrieval failed", "err", err)
			answer = synthesis.Unanswerable(d.Type, err)
		} else {
			answer = e.synth.Synthesize(ctx, text, d.Type, result)
		}
	}

	answer.QueryId = queryID
	answer.DocumentId = docID
	elapsed := time.Since(started)
	e.metrics.RecordAnswer(string(answer.Path), answer.Confidence, elapsed)
	logger.Info("question answered",
		"type", answer.QueryType,
		"path", answer.Path,
		"confidence", answer.Confidence,
		"tokens", answer.TokensUsed,
		"elapsed", elapsed)
	return answer, nil
}

// snapshot returns the current snapshot of a document or an
// ErrUnknownDocument explaining why there is none.
func (e *Engine) snapshot(id core.ID) (*index.Snapshot, error) {
	if snap, ok := e.registry.Get(id); ok {
		return snap, nil
	}
	e.mu.Lock()
	model, stale := e.stale[id]
	e.mu.Unlock()
	if stale {
		return nil, fmt.Errorf("%w: %s has a stale index built with %s, reindex it for %s",
			core.ErrUnknownDocument, id, model, e.embedder.ModelID())
	}
	return nil, fmt.Errorf("%w: %s", core.ErrUnknownDocument, id)
}

// Describe summarises an indexed document.
func (e *Engine) Describe(id core.ID) (core.DocumentSummary, error) {
	snap, err := e.snapshot(id)
	if err != nil {
		return core.DocumentSummary{}, err
	}
	return snap.Summary(), nil
}

// Fields returns every structured field candidate found in a document.
func (e *Engine) Fields(id core.ID) ([]core.StructuredField, error) {
	snap, err := e.snapshot(id)
	if err != nil {
		return nil, err
	}
	return append([]core.StructuredField(nil), snap.Fields...), nil
}

// List summarises every queryable document in id order.
func (e *Engine) List() []core.DocumentSummary {
	ids := e.registry.IDs()
	summaries := make([]core.DocumentSummary, 0, len(ids))
	for _, id := range ids {
		if snap, ok := e.registry.Get(id); ok {
			summaries = append(summaries, snap.Summary())
		}
	}
	return summaries
}

// Stale returns the stored documents that need reindexing, with the model
// that built them.
func (e *Engine) Stale() map[core.ID]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[core.ID]string, len(e.stale))
	for id, model := range e.stale {
		out[id] = model
	}
	return out
}

// Forget removes a document from memory and from the store.
func (e *Engine) Forget(ctx context.Context, id core.ID) error {
	if e.closed.Load() {
		return ErrClosed
	}
	removed := e.registry.Remove(id)
	e.mu.Lock()
	_, stale := e.stale[id]
	delete(e.stale, id)
	e.mu.Unlock()

	if e.store != nil && (removed || stale) {
		if err := e.store.DeleteIndex(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("deleting stored index: %w", err)
		}
	}
	if !removed && !stale {
		return fmt.Errorf("%w: %s", core.ErrUnknownDocument, id)
	}
	e.metrics.SetIndexedDocuments(e.registry.Len())
	e.logger.Info("document forgotten", "document", id)
	return nil
}

// Reindex rebuilds stored indexes made by another embedding model and
// publishes them. With force every stored index is rebuilt.
func (e *Engine) Reindex(ctx context.Context, progress io.Writer, force bool) (*reindex.Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if e.store == nil {
		return nil, ErrNoStore
	}
	cfg := e.config.Reindex
	cfg.Force = force
	r, err := reindex.NewReindexer(e.store, e.pipeline, cfg,
		reindex.WithLogger(e.base),
		reindex.WithProgress(progress),
		reindex.WithRebuiltHook(func(snap *index.Snapshot) {
			e.registry.Publish(snap)
			e.mu.Lock()
			delete(e.stale, snap.Document.Id)
			e.mu.Unlock()
		}))
	if err != nil {
		return nil, err
	}
	result, err := r.Run(ctx)
	e.metrics.SetIndexedDocuments(e.registry.Len())
	return result, err
}

// Status reports readiness for health checks.
func (e *Engine) Status() core.Status {
	n := e.registry.Len()
	return core.Status{
		IndexReady:     n > 0 && !e.closed.Load(),
		LLMConfigured:  e.synth.LLMEnabled(),
		Documents:      n,
		EmbeddingModel: e.embedder.ModelID(),
	}
}

// Close releases the worker pool, the AI provider and an owned store.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := e.release()
	if err != nil {
		e.logger.Error("error closing engine", "err", err)
	}
	return err
}

func (e *Engine) release() error {
	var errs []error
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing ai provider: %w", err))
		}
	}
	if e.store != nil && e.ownsStore {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index store: %w", err))
		}
	}
	return errors.Join(errs...)
}
