// Package extract finds well-known fields (coverage limits, durations,
// exclusions and so on) in document text so common questions can be answered
// without retrieval or a language model.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/lexicon"
)

// maxHeadingWords bounds how long a line may be and still open a section.
const maxHeadingWords = 6

// minItemLength drops list items too short to carry information.
const minItemLength = 10

type compiledRule struct {
	key        core.FieldKey
	keywords   []lexicon.Phrase
	pattern    *regexp.Regexp
	valueGroup int
	section    bool
}

type compiledKind struct {
	kind     core.DocumentKind
	keywords []lexicon.Phrase
}

// Extractor applies compiled rules. It is immutable and safe for concurrent use.
type Extractor struct {
	config Config
	rules  []compiledRule
	kinds  []compiledKind
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger.With("component", "extractor")
		}
	}
}

// New compiles the rules in config.
func New(config Config, opts ...Option) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		config: config,
		logger: slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, r := range config.Rules {
		cr := compiledRule{key: r.Key, keywords: lexicon.NewPhrases(r.Keywords), section: r.Section}
		if r.Pattern != "" {
			cr.pattern = regexp.MustCompile(r.Pattern) // validated above
			cr.valueGroup = cr.pattern.SubexpIndex("value")
		}
		e.rules = append(e.rules, cr)
	}
	for _, k := range config.Kinds {
		e.kinds = append(e.kinds, compiledKind{kind: k.Kind, keywords: lexicon.NewPhrases(k.Keywords)})
	}
	return e, nil
}

// Extract returns every field candidate found in doc, in document order.
// Each candidate is attributed to the earliest chunk containing its statement,
// and to the page or section holding the statement itself.
func (e *Extractor) Extract(doc *core.Document, chunks []*core.Chunk) []core.StructuredField {
	var (
		fields []core.StructuredField
		seen   = make(map[string]bool)
	)
	add := func(key core.FieldKey, value, snippet string, offset int, seg core.Segment, confidence float64) {
		value = truncate(value, e.config.MaxValueLength)
		dedup := fmt.Sprintf("%s\x00%s\x00%d", key, value, seg.Number)
		if seen[dedup] {
			return
		}
		seen[dedup] = true

		field := core.StructuredField{
			Key:        key,
			Value:      value,
			Page:       seg.Number,
			Ref:        seg.Ref(),
			Confidence: confidence,
			Snippet:    truncate(snippet, e.config.MaxValueLength),
		}
		if c := chunkAt(chunks, offset); c != nil {
			field.ChunkId = c.Id
			field.Ordinal = c.Ordinal
		}
		fields = append(fields, field)
	}

	starts := doc.SegmentStarts()
	for si, seg := range doc.Segments {
		lines := splitLines(seg.Text, starts[si])
		for li, ln := range lines {
			trimmed := strings.TrimSpace(ln.text)
			if trimmed == "" {
				continue
			}
			lineWords := lexicon.Words(trimmed)
			stmts := sentences(ln)
			stmtWords := make([][]string, len(stmts))
			for i, st := range stmts {
				stmtWords[i] = lexicon.Words(st.text)
			}

			for _, r := range e.rules {
				if r.section && isSectionHeading(trimmed, lineWords, r.keywords) {
					if items := e.sectionItems(lines[li+1:]); len(items) > 0 {
						add(r.key, strings.Join(items, "; "), trimmed+" "+strings.Join(items, " "), ln.offset, seg, e.config.HighConfidence)
					}
					continue
				}
				for i, st := range stmts {
					if !lexicon.AnyIn(r.keywords, stmtWords[i]) {
						continue
					}
					value, confidence := st.text, e.config.MediumConfidence
					if r.pattern != nil {
						if m := r.pattern.FindStringSubmatch(st.text); m != nil {
							confidence = e.config.HighConfidence
							if r.valueGroup > 0 && m[r.valueGroup] != "" {
								value = strings.TrimSpace(m[r.valueGroup])
							}
						}
					}
					add(r.key, value, st.text, st.offset, seg, confidence)
				}
			}
		}
	}

	e.logger.Debug("fields extracted", "document", doc.Id, "candidates", len(fields))
	return fields
}

// sectionItems collects the lines following a heading up to the first blank
// line, keeping at most MaxSectionItems informative items.
func (e *Extractor) sectionItems(lines []line) []string {
	var items []string
	for _, ln := range lines {
		if strings.TrimSpace(ln.text) == "" {
			break
		}
		item := itemText(ln.text)
		if len([]rune(item)) <= minItemLength {
			continue
		}
		items = append(items, item)
		if len(items) == e.config.MaxSectionItems {
			break
		}
	}
	return items
}

// isSectionHeading reports whether a line is a short title naming the section,
// e.g. "Exclusions:" or "3. Claims Process".
func isSectionHeading(text string, words []string, keywords []lexicon.Phrase) bool {
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	if !strings.HasSuffix(text, ":") && !isTitleLine(text) {
		return false
	}
	return lexicon.AnyIn(keywords, words)
}

// isTitleLine reports whether every longer word starts with a capital letter or
// digit. Short connectives such as "of" and "and" may stay lowercase.
func isTitleLine(text string) bool {
	for _, w := range strings.Fields(text) {
		r := []rune(w)
		if unicode.IsUpper(r[0]) || unicode.IsDigit(r[0]) || unicode.IsPunct(r[0]) {
			continue
		}
		if len(r) > 3 {
			return false
		}
	}
	return true
}

// chunkAt returns the lowest-ordinal chunk containing the rune offset.
func chunkAt(chunks []*core.Chunk, offset int) *core.Chunk {
	for _, c := range chunks {
		if offset >= c.Start && offset < c.End {
			return c
		}
	}
	return nil
}

// DetectKind classifies the document by keyword hits. The kind with the most
// distinct keyword hits wins if it reaches MinKindHits; earlier kinds win ties.
func (e *Extractor) DetectKind(doc *core.Document) core.DocumentKind {
	words := lexicon.Words(doc.Text())
	best, bestHits := core.KindGeneral, 0
	for _, k := range e.kinds {
		hits := 0
		for _, p := range k.keywords {
			if p.In(words) {
				hits++
			}
		}
		if hits >= e.config.MinKindHits && hits > bestHits {
			best, bestHits = k.kind, hits
		}
	}
	return best
}
