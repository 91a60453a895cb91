package search

import (
	"fmt"

	"github.com/poiesic/docqa/core"
)

// MaxTopK bounds the number of chunks a single query may retrieve.
const MaxTopK = 20

// Config tunes retrieval and confidence scoring.
type Config struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"` // below this the result is low confidence

	// Weights of the confidence signals. They are normalised by their sum.
	TopWeight       float64 `yaml:"top_weight"`
	AgreementWeight float64 `yaml:"agreement_weight"`
	LexicalWeight   float64 `yaml:"lexical_weight"`
}

// DefaultConfig returns the default retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:            4,
		MinSimilarity:   0.2,
		TopWeight:       0.6,
		AgreementWeight: 0.2,
		LexicalWeight:   0.2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d, got %d", core.ErrInvalidConfig, MaxTopK, c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be within [0,1], got %v", core.ErrInvalidConfig, c.MinSimilarity)
	}
	if c.TopWeight < 0 || c.AgreementWeight < 0 || c.LexicalWeight < 0 {
		return fmt.Errorf("%w: confidence weights must not be negative", core.ErrInvalidConfig)
	}
	if c.weightSum() == 0 {
		return fmt.Errorf("%w: at least one confidence weight must be positive", core.ErrInvalidConfig)
	}
	return nil
}

func (c Config) weightSum() float64 {
	return c.TopWeight + c.AgreementWeight + c.LexicalWeight
}
