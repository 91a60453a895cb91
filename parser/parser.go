// Package parser extracts page and section text from PDF, DOCX and plain-text documents.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/docqa/core"
)

// Parser turns raw document bytes into a core.Document.
// It performs no filesystem writes and is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "parser")
	}
}

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		logger: slog.Default().With("component", "parser"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the ordered segments of a document.
// Returns core.ErrUnsupportedFormat for unknown formats and core.ErrCorruptDocument
// when the bytes cannot be read or contain no text.
func (p *Parser) Parse(ctx context.Context, data []byte, format core.Format) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		segments []core.Segment
		err      error
	)
	switch format {
	case core.FormatPDF:
		segments, err = extractPDF(data)
	case core.FormatDOCX:
		segments, err = extractDOCX(data)
	case core.FormatTXT:
		segments, err = extractText(data)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}
	if err != nil {
		p.logger.Warn("document extraction failed", "format", format, "bytes", len(data), "err", err)
		return nil, err
	}

	doc := &core.Document{
		Id:          core.IDFromContent(string(format) + ":" + string(data)),
		Format:      format,
		Segments:    segments,
		ByteLength:  len(data),
		ExtractedAt: p.now(),
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	p.logger.Debug("document parsed", "id", doc.Id, "format", format, "segments", len(segments))
	return doc, nil
}

// ParseFile reads a file and parses it using the format implied by its extension.
func (p *Parser) ParseFile(ctx context.Context, path string) (*core.Document, error) {
	format, err := core.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, data, format)
}

var (
	horizontalSpace = regexp.MustCompile(`[\t\v\p{Zs}]+`)
	spaceBeforeEOL  = regexp.MustCompile(` +\n`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// normalizeWhitespace collapses runs of spaces and blank lines inside one segment.
// Line structure is kept because section and list detection depend on it.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceBeforeEOL.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// pageSegments builds page segments from raw page texts, dropping blank pages
// while keeping the original page numbers.
func pageSegments(pages []string) []core.Segment {
	segments := make([]core.Segment, 0, len(pages))
	for i, page := range pages {
		text := normalizeWhitespace(page)
		if text == "" {
			continue
		}
		segments = append(segments, core.Segment{
			Kind:   core.SegmentPage,
			Number: i + 1,
			Text:   text,
		})
	}
	return segments
}
