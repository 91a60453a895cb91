// Package chunker splits parsed documents into overlapping chunks for embedding
// and citation.
package chunker

import (
	"fmt"
	"log/slog"
	"strconv"
	"unicode"

	"github.com/poiesic/docqa/core"
)

// Config controls chunk geometry. Lengths are in runes.
type Config struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// DefaultConfig returns 1000-rune chunks sharing 200 runes.
func DefaultConfig() Config {
	return Config{Size: 1000, Overlap: 200}
}

// Validate checks Size > 0 and 0 <= Overlap < Size.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", core.ErrInvalidConfig, c.Size, c.Overlap)
	}
	return nil
}

// Chunker splits documents. It holds no per-document state and is safe for
// concurrent use.
type Chunker struct {
	config Config
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "chunker")
	}
}

// New creates a chunker after validating the config.
func New(config Config, opts ...Option) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{
		config: config,
		logger: slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the chunk geometry.
func (c *Chunker) Config() Config {
	return c.config
}

// Split cuts doc.Text() into chunks of at most Size runes. Each chunk after the
// first starts exactly Overlap runes before the previous chunk's end, so the
// chunks cover every rune in order.
func (c *Chunker) Split(doc *core.Document) ([]*core.Chunk, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	text := []rune(doc.Text())
	boundaries := doc.SegmentStarts()
	size, overlap := c.config.Size, c.config.Overlap
	minAdvance := max(overlap+1, size/2)

	var chunks []*core.Chunk
	for start := 0; ; {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, boundaries, start+minAdvance, end)
		}

		first, last := doc.SegmentAt(start), doc.SegmentAt(end-1)
		ordinal := len(chunks)
		chunks = append(chunks, &core.Chunk{
			Id:          chunkID(doc.Id, ordinal),
			DocumentId:  doc.Id,
			Ordinal:     ordinal,
			Text:        string(text[start:end]),
			Start:       start,
			End:         end,
			Page:        first.Number,
			EndPage:     last.Number,
			SegmentKind: first.Kind,
		})

		if end == len(text) {
			break
		}
		start = end - overlap
	}

	c.logger.Debug("document chunked", "document", doc.Id, "runes", len(text), "chunks", len(chunks))
	return chunks, nil
}

func chunkID(doc core.ID, ordinal int) core.ID {
	return core.IDFromContent(doc.String() + ":" + strconv.Itoa(ordinal))
}

// breakPoint picks the chunk end in [lo, hi], preferring in order a segment
// boundary, a line break, a sentence end and any whitespace. Without any of
// those the text is hard-split at hi.
func breakPoint(text []rune, boundaries []int, lo, hi int) int {
	for i := len(boundaries) - 1; i >= 0; i-- {
		if b := boundaries[i]; b >= lo && b <= hi {
			return b
		}
	}
	for _, accept := range []func(p int) bool{
		func(p int) bool { return text[p-1] == '\n' },
		func(p int) bool { return p >= 2 && unicode.IsSpace(text[p-1]) && isSentenceEnd(text[p-2]) },
		func(p int) bool { return unicode.IsSpace(text[p-1]) },
	} {
		for p := hi; p >= lo; p-- {
			if accept(p) {
				return p
			}
		}
	}
	return hi
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
