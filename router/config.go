package router

import (
	"fmt"
	"slices"

	"github.com/poiesic/docqa/core"
)

// TypeRule maps a query type to the phrases that signal it and, optionally, to
// the structured field that can answer it.
type TypeRule struct {
	Type     core.QueryType `yaml:"type"`
	Keywords []string       `yaml:"keywords"`
	Field    core.FieldKey  `yaml:"field,omitempty"`
}

// Config lists the type rules in tie-break order.
type Config struct {
	Types []TypeRule `yaml:"types"`

	// ZeroTokenThreshold is the minimum field confidence for a zero-token answer.
	ZeroTokenThreshold float64 `yaml:"zero_token_threshold"`
}

// DefaultConfig returns the built-in keyword lists. Exclusion precedes coverage
// so "not covered" is not read as a coverage question.
func DefaultConfig() Config {
	return Config{
		Types: []TypeRule{
			{
				Type:     core.QueryPolicyNumber,
				Keywords: []string{"policy number", "policy no", "certificate number", "policy id"},
				Field:    core.FieldPolicyNumber,
			},
			{
				Type:     core.QueryExclusion,
				Keywords: []string{"exclusion", "excluded", "exclude", "not covered", "isn't covered", "limitations"},
				Field:    core.FieldExclusionList,
			},
			{
				Type:     core.QueryClaimsProcess,
				Keywords: []string{"claim", "file a claim", "how to claim", "claims process", "reimbursement", "submit"},
				Field:    core.FieldClaimsProcess,
			},
			{
				Type:     core.QueryPremium,
				Keywords: []string{"premium", "cost", "price", "payment", "fee", "how much"},
				Field:    core.FieldPremiumAmount,
			},
			{
				Type:     core.QueryDuration,
				Keywords: []string{"duration", "policy term", "policy period", "period", "how long", "length", "valid", "expire", "expiry", "term of the policy"},
				Field:    core.FieldPolicyDuration,
			},
			{
				Type:     core.QueryCoverage,
				Keywords: []string{"coverage", "covered", "coverage limit", "limit", "protection", "benefits", "sum insured", "maximum"},
				Field:    core.FieldCoverageLimit,
			},
			{
				Type:     core.QueryDefinitions,
				Keywords: []string{"definition", "define", "meaning", "mean", "defined"},
				Field:    core.FieldDefinition,
			},
		},
		ZeroTokenThreshold: 0.75,
	}
}

// Validate checks the threshold and type rules.
func (c Config) Validate() error {
	if c.ZeroTokenThreshold < 0 || c.ZeroTokenThreshold > 1 {
		return fmt.Errorf("%w: zero-token threshold must be in [0,1], got %v", core.ErrInvalidConfig, c.ZeroTokenThreshold)
	}
	seen := make(map[core.QueryType]bool)
	for i, r := range c.Types {
		if _, ok := core.ParseQueryType(string(r.Type)); !ok || r.Type == core.QueryGeneral {
			return fmt.Errorf("%w: type rule %d has invalid type %q", core.ErrInvalidConfig, i, r.Type)
		}
		if seen[r.Type] {
			return fmt.Errorf("%w: duplicate type rule %q", core.ErrInvalidConfig, r.Type)
		}
		seen[r.Type] = true
		if r.Field != "" && !slices.Contains(core.FieldKeys, r.Field) {
			return fmt.Errorf("%w: type %q maps to unknown field %q", core.ErrInvalidConfig, r.Type, r.Field)
		}
	}
	return nil
}
