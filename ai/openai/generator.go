package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.LLMEnabled() {
		return nil, fmt.Errorf("%w: no generator model configured", core.ErrLLMUnavailable)
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return newGeneratorWithClient(client, config), nil
}

func newGeneratorWithClient(client llms.Model, config *ai.Config) *Generator {
	g := &Generator{
		client:      client,
		model:       config.GeneratorModel,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}
	if config.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60), 1)
	}
	return g
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate sends the system prompt and the grounded user prompt as a single
// chat turn and returns the first choice.
func (g *Generator) Generate(ctx context.Context, req ai.Request) (*ai.Generation, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, classifyError(ctx, err)
		}
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(scrubString(req.System))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(scrubString(req.Prompt))},
		},
	}

	maxTokens, temperature := g.maxTokens, g.temperature
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	g.logger.Debug("generating answer", "model", g.model, "prompt_chars", len(req.Prompt), "evidence", len(req.Evidence))
	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		err = classifyError(ctx, err)
		g.logger.Warn("failed to generate content", "err", err)
		return nil, err
	}

	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: %w", core.ErrLLMUnavailable, errors.New("no choices returned from model"))
	}
	choice := response.Choices[0]

	return &ai.Generation{
		Text:       cleanResponse(choice.Content),
		TokensUsed: tokensUsed(choice.GenerationInfo),
	}, nil
}

// tokensUsed reads the usage counters langchaingo copies into GenerationInfo.
func tokensUsed(info map[string]any) int {
	if n := asInt(info["TotalTokens"]); n > 0 {
		return n
	}
	return asInt(info["PromptTokens"]) + asInt(info["CompletionTokens"])
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func token(config *ai.Config) string {
	if config.APIKey == "" {
		// local OpenAI-compatible servers ignore the token but the client requires one
		return "none"
	}
	return config.APIKey
}
