// Package router classifies questions and decides between a zero-token answer
// from extracted fields and retrieval.
package router

import (
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/lexicon"
)

// Decision is the routing outcome: either ZeroToken or Retrieve.
type Decision interface {
	QueryType() core.QueryType
	decision()
}

// ZeroToken answers directly from an extracted field.
type ZeroToken struct {
	Type  core.QueryType
	Field core.StructuredField
}

// Retrieve sends the query through retrieval and synthesis. Keywords are the
// classified type's phrases, used for lexical corroboration.
type Retrieve struct {
	Type     core.QueryType
	Keywords []string
}

// QueryType returns the classified type.
func (d ZeroToken) QueryType() core.QueryType { return d.Type }

// QueryType returns the classified type.
func (d Retrieve) QueryType() core.QueryType { return d.Type }

func (ZeroToken) decision() {}
func (Retrieve) decision()  {}

// Classification is the result of Classify.
type Classification struct {
	Type         core.QueryType
	Field        core.FieldKey
	HasField     bool
	CanZeroToken bool
	Score        int      // summed word count of matched phrases
	Matched      []string // matched phrases of the winning type
}

type compiledType struct {
	rule     TypeRule
	keywords []lexicon.Phrase
}

// Router is immutable and safe for concurrent use.
type Router struct {
	config Config
	types  []compiledType
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger.With("component", "router")
		}
	}
}

// New compiles the keyword lists in config.
func New(config Config, opts ...Option) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Router{config: config, logger: slog.Default().With("component", "router")}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range config.Types {
		r.types = append(r.types, compiledType{rule: t, keywords: lexicon.NewPhrases(t.Keywords)})
	}
	return r, nil
}

// Classify picks the query type and reports whether a zero-token answer exists
// in fields. A known TypeHint overrides keyword matching.
func (r *Router) Classify(q core.Query, fields []core.StructuredField) Classification {
	c := Classification{Type: core.QueryGeneral}

	if hint, ok := core.ParseQueryType(string(q.TypeHint)); ok {
		c.Type = hint
	} else {
		words := lexicon.Words(q.Text)
		for _, t := range r.types {
			score, matched := 0, []string(nil)
			for _, p := range t.keywords {
				if p.In(words) {
					score += p.Len()
					matched = append(matched, p.Text)
				}
			}
			if score > c.Score {
				c.Type, c.Score, c.Matched = t.rule.Type, score, matched
			}
		}
	}

	if t, ok := r.rule(c.Type); ok && t.Field != "" {
		c.Field, c.HasField = t.Field, true
		if best, ok := Best(fields, t.Field); ok && best.Confidence >= r.config.ZeroTokenThreshold {
			c.CanZeroToken = true
		}
	}
	return c
}

// Route classifies the query and returns the decision.
func (r *Router) Route(q core.Query, fields []core.StructuredField) Decision {
	c := r.Classify(q, fields)

	var d Decision
	if c.CanZeroToken {
		best, _ := Best(fields, c.Field)
		d = ZeroToken{Type: c.Type, Field: best}
	} else {
		retrieve := Retrieve{Type: c.Type}
		if t, ok := r.rule(c.Type); ok {
			retrieve.Keywords = t.Keywords
		}
		d = retrieve
	}

	r.logger.Debug("query routed",
		"type", c.Type,
		"matched", strings.Join(c.Matched, ","),
		"zero_token", c.CanZeroToken)
	return d
}

// Keywords returns the phrases configured for a query type.
func (r *Router) Keywords(qt core.QueryType) []string {
	if t, ok := r.rule(qt); ok {
		return t.Keywords
	}
	return nil
}

func (r *Router) rule(qt core.QueryType) (TypeRule, bool) {
	for _, t := range r.types {
		if t.rule.Type == qt {
			return t.rule, true
		}
	}
	return TypeRule{}, false
}

// Best returns the winning candidate for key: highest confidence, then
// earliest chunk, then document order.
func Best(fields []core.StructuredField, key core.FieldKey) (core.StructuredField, bool) {
	var (
		best  core.StructuredField
		found bool
	)
	for _, f := range fields {
		if f.Key != key {
			continue
		}
		if !found || f.Confidence > best.Confidence ||
			(f.Confidence == best.Confidence && f.Ordinal < best.Ordinal) {
			best, found = f, true
		}
	}
	return best, found
}
