package extract

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/poiesic/docqa/core"
)

// Rule describes how one structured field is recognised.
//
// A statement that contains one of Keywords is a candidate. When Pattern also
// matches the same statement the candidate is high confidence, otherwise
// medium. A named group "value" in Pattern selects the field value; without it
// the whole statement is the value. Section rules additionally treat a short
// heading containing a keyword as the start of a list of items.
type Rule struct {
	Key      core.FieldKey `yaml:"key"`
	Keywords []string      `yaml:"keywords"`
	Pattern  string        `yaml:"pattern,omitempty"`
	Section  bool          `yaml:"section,omitempty"`
}

// KindRule lists the keywords that indicate one document kind.
type KindRule struct {
	Kind     core.DocumentKind `yaml:"kind"`
	Keywords []string          `yaml:"keywords"`
}

// Config holds the extraction rules and confidence levels.
type Config struct {
	Rules            []Rule     `yaml:"rules"`
	Kinds            []KindRule `yaml:"kinds"`
	HighConfidence   float64    `yaml:"high_confidence"`
	MediumConfidence float64    `yaml:"medium_confidence"`
	MaxSectionItems  int        `yaml:"max_section_items"`
	MinKindHits      int        `yaml:"min_kind_hits"`
	MaxValueLength   int        `yaml:"max_value_length"`
}

const (
	moneyPattern    = `(?i)(?P<value>(?:[$€£₹]|\b(?:usd|eur|gbp|inr|rs\.?)\s?)\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|thousand|lakhs?|crores?|[km])\b)?|\b\d[\d,]*(?:\.\d+)?\s?(?:dollars|euros|pounds|rupees)\b)`
	durationPattern = `(?i)(?P<value>\b\d+\s*(?:-\s*)?(?:years?|months?|weeks?|days?)\b)`
)

// DefaultConfig returns rules tuned for insurance policies and similar documents.
func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{
				Key:      core.FieldCoverageLimit,
				Keywords: []string{"coverage limit", "limit of coverage", "maximum coverage", "sum insured", "limit of liability", "maximum benefit", "coverage amount"},
				Pattern:  moneyPattern,
			},
			{
				Key:      core.FieldPolicyDuration,
				Keywords: []string{"policy term", "policy period", "term of the policy", "policy duration", "duration", "coverage period", "valid for"},
				Pattern:  durationPattern,
			},
			{
				Key:      core.FieldExclusionList,
				Keywords: []string{"exclusions", "exclusion", "excluded", "not covered", "does not cover", "what is not covered", "limitations"},
				Section:  true,
			},
			{
				Key:      core.FieldClaimsProcess,
				Keywords: []string{"claims process", "claim process", "claims procedure", "filing claims", "file a claim", "how to claim", "claims"},
				Pattern:  `(?i)\bwithin\s+\d+\s*(?:hours?|days?|weeks?)\b`,
				Section:  true,
			},
			{
				Key:      core.FieldPremiumAmount,
				Keywords: []string{"premium", "annual premium", "monthly premium", "premium amount"},
				Pattern:  moneyPattern,
			},
			{
				Key:      core.FieldDefinition,
				Keywords: []string{"means", "defined as", "refers to", "definitions"},
				Pattern:  `(?i)^\W*["“']?[\p{L}][\p{L} -]{1,40}["”']?\s+(?:means|is defined as|refers to)\b`,
				Section:  true,
			},
			{
				Key:      core.FieldPolicyNumber,
				Keywords: []string{"policy number", "policy no", "certificate number"},
				Pattern:  `(?i)(?:policy\s*(?:number|no\.?|#)|certificate\s*number)\s*[:#-]?\s*(?P<value>[A-Z]{0,6}[-/]?\d[A-Z0-9/-]{2,})`,
			},
		},
		Kinds: []KindRule{
			{Kind: core.KindInsurancePolicy, Keywords: []string{
				"insurance", "policy", "coverage", "premium", "sum insured", "policy period",
				"policyholder", "insured", "claim", "exclusion", "waiting period", "grace period",
				"cumulative bonus", "portability", "renewal", "deductible", "co-payment",
			}},
			{Kind: core.KindContract, Keywords: []string{
				"contract", "agreement", "terms and conditions", "party", "parties", "hereby", "termination", "obligations", "governing law",
			}},
			{Kind: core.KindHRPolicy, Keywords: []string{
				"employment", "employee", "human resources", "leave", "payroll", "probation", "code of conduct", "performance review",
			}},
			{Kind: core.KindCompliance, Keywords: []string{
				"compliance", "regulation", "regulatory", "legal", "audit", "data protection", "reporting obligations", "sanctions",
			}},
		},
		HighConfidence:   0.9,
		MediumConfidence: 0.6,
		MaxSectionItems:  5,
		MinKindHits:      3,
		MaxValueLength:   300,
	}
}

// Validate checks the rule set and confidence levels.
func (c Config) Validate() error {
	if c.HighConfidence <= 0 || c.HighConfidence > 1 {
		return fmt.Errorf("%w: high confidence must be in (0,1], got %v", core.ErrInvalidConfig, c.HighConfidence)
	}
	if c.MediumConfidence <= 0 || c.MediumConfidence > c.HighConfidence {
		return fmt.Errorf("%w: medium confidence must be in (0,high], got %v", core.ErrInvalidConfig, c.MediumConfidence)
	}
	if c.MaxSectionItems < 1 {
		return fmt.Errorf("%w: max section items must be positive", core.ErrInvalidConfig)
	}
	if c.MinKindHits < 1 {
		return fmt.Errorf("%w: min kind hits must be positive", core.ErrInvalidConfig)
	}
	if c.MaxValueLength < 1 {
		return fmt.Errorf("%w: max value length must be positive", core.ErrInvalidConfig)
	}
	for i, r := range c.Rules {
		if !slices.Contains(core.FieldKeys, r.Key) {
			return fmt.Errorf("%w: rule %d has unknown field key %q", core.ErrInvalidConfig, i, r.Key)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("%w: rule %q has no keywords", core.ErrInvalidConfig, r.Key)
		}
		if r.Pattern != "" {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("%w: rule %q pattern: %w", core.ErrInvalidConfig, r.Key, err)
			}
		}
	}
	return nil
}
