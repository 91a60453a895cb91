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


package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/storage"
)

// Config holds configuration for a reindex run.
type Config struct {
	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int `yaml:"report_interval"`

	// MaxAttempts is the number of build attempts per document
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Force rebuilds every stored index, not only stale ones
	Force bool `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReportInterval: 1,
		MaxAttempts:    3,
		RetryDelay:     time.Second,
	}
}

// Builder turns a parsed document into a fresh snapshot.
// *ingestion.Pipeline satisfies it.
type Builder interface {
	Build(ctx context.Context, doc *core.Document) (*index.Snapshot, error)
	Embedder() ai.Embedder
}

// Result summarises a run.
type Result struct {
	Checked int
	Rebuilt []core.ID
	Failed  []core.ID
}

// Reindexer rebuilds stale indexes in a repository.
type Reindexer struct {
	repo      storage.IndexRepository
	builder   Builder
	config    Config
	progress  io.Writer
	logger    *slog.Logger
	onRebuilt func(*index.Snapshot)
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) {
		if logger != nil {
			r.logger = logger.With("component", "reindex")
		}
	}
}

// WithProgress sets where progress lines are written (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(r *Reindexer) {
		r.progress = w
	}
}

// WithRebuiltHook registers a callback that receives every rebuilt snapshot
// after it has been saved.
func WithRebuiltHook(fn func(*index.Snapshot)) Option {
	return func(r *Reindexer) {
		r.onRebuilt = fn
	}
}

// NewReindexer creates a reindexer.
func NewReindexer(repo storage.IndexRepository, builder Builder, config Config, opts ...Option) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if builder == nil || builder.Embedder() == nil {
		return nil, ErrBuilderRequired
	}
	if config.MaxAttempts <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}

	r := &Reindexer{
		repo:     repo,
		builder:  builder,
		config:   config,
		progress: io.Discard,
		logger:   slog.Default().With("component", "reindex"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Stale lists stored indexes whose embedding model differs from the builder's.
// With Config.Force every stored index is returned.
func (r *Reindexer) Stale(ctx context.Context) ([]*storage.IndexMeta, error) {
	metas, err := r.repo.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}

	model := r.builder.Embedder().ModelID()
	var stale []*storage.IndexMeta
	for _, meta := range metas {
		if r.config.Force || meta.EmbeddingModel != model {
			stale = append(stale, meta)
		}
	}
	return stale, nil
}

// Run rebuilds every stale index. A document that fails is logged and
// skipped; the joined failures are returned alongside the result.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	stale, err := r.Stale(ctx)
	if err != nil {
		return nil, err
	}

	model := r.builder.Embedder().ModelID()
	result := &Result{Checked: len(stale)}
	if len(stale) == 0 {
		fmt.Fprintf(r.progress, "All indexes are current for %s\n", model)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Reindexing %d documents with %s\n", len(stale), model)
	tracker := NewProgressTracker(r.progress, len(stale), r.config.ReportInterval)
	tracker.Start()

	var errs []error
	for _, meta := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := r.rebuild(ctx, meta)
		tracker.Done(err != nil)
		if err != nil {
			r.logger.Warn("reindex failed", "document", meta.DocumentId, "from", meta.EmbeddingModel, "err", err)
			result.Failed = append(result.Failed, meta.DocumentId)
			errs = append(errs, fmt.Errorf("%s: %w", meta.DocumentId, err))
			continue
		}
		result.Rebuilt = append(result.Rebuilt, meta.DocumentId)
	}
	tracker.Finish()

	r.logger.Info("reindex finished",
		"model", model,
		"rebuilt", len(result.Rebuilt),
		"failed", len(result.Failed),
		"elapsed", tracker.Elapsed())
	return result, errors.Join(errs...)
}

func (r *Reindexer) rebuild(ctx context.Context, meta *storage.IndexMeta) error {
	doc, err := r.repo.LoadDocument(ctx, meta.DocumentId)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	var snap *index.Snapshot
	policy := ai.RetryPolicy{
		MaxAttempts: r.config.MaxAttempts,
		BaseDelay:   r.config.RetryDelay,
		Retryable:   retryable,
	}
	err = ai.RetryWithBackoff(ctx, func() error {
		var err error
		snap, err = r.builder.Build(ctx, doc)
		return err
	}, policy)
	if err != nil {
		return err
	}

	if err := r.repo.SaveIndex(ctx, storage.RecordFromSnapshot(snap)); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	if r.onRebuilt != nil {
		r.onRebuilt(snap)
	}
	return nil
}

// retryable rejects failures another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, core.ErrEmptyIndex) &&
		!errors.Is(err, core.ErrCorruptDocument)
}
