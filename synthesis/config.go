package synthesis

import (
	"fmt"
	"time"

	"github.com/poiesic/docqa/core"
)

// Config tunes answer synthesis.
type Config struct {
	MaxContextTokens int           `yaml:"max_context_tokens"`
	CharsPerToken    int           `yaml:"chars_per_token"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay"`
	ExtractiveWindow int           `yaml:"extractive_window"` // runes
}

// DefaultConfig returns the default synthesis settings.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens: 1500,
		CharsPerToken:    4,
		Timeout:          20 * time.Second,
		MaxAttempts:      2,
		BaseDelay:        500 * time.Millisecond,
		ExtractiveWindow: 600,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.MaxContextTokens <= 0:
		return fmt.Errorf("%w: max_context_tokens must be positive", core.ErrInvalidConfig)
	case c.CharsPerToken <= 0:
		return fmt.Errorf("%w: chars_per_token must be positive", core.ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", core.ErrInvalidConfig)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max_attempts must be positive", core.ErrInvalidConfig)
	case c.BaseDelay < 0:
		return fmt.Errorf("%w: base_delay must not be negative", core.ErrInvalidConfig)
	case c.ExtractiveWindow <= 0:
		return fmt.Errorf("%w: extractive_window must be positive", core.ErrInvalidConfig)
	}
	return nil
}
