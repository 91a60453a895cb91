package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

// classifyError maps a client error onto the language-model error taxonomy so
// callers can tell transient failures from permanent ones.
func classifyError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrLLMTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%w: %w", core.ErrRateLimited, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %w", core.ErrLLMTimeout, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrLLMUnavailable, err)
	}
}
