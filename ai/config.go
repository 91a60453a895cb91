// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

// Config holds configuration for the language-model and embedding services.
type Config struct {
	// GeneratorHost is the base URL for the chat completion API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	GeneratorHost string `yaml:"generator_host"`

	// GeneratorModel is the chat model used for answer synthesis.
	// Empty disables the language model; answers then fall back to extractive text.
	GeneratorModel string `yaml:"generator_model"`

	// EmbeddingHost is the base URL for a remote embedding API.
	EmbeddingHost string `yaml:"embedding_host"`

	// EmbeddingModel selects a remote embedding model.
	// Empty selects the built-in hashing embedder, which needs no network.
	EmbeddingModel string `yaml:"embedding_model"`

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string `yaml:"-"`

	// Temperature for answer generation.
	// Default: 0.1
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the generated answer length.
	// Default: 512
	MaxTokens int `yaml:"max_tokens"`

	// RequestsPerMinute paces calls to the chat API. Zero means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithGeneratorHost sets the chat service host URL.
func WithGeneratorHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithHost sets both generator and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
		c.EmbeddingHost = host
	}
}

// WithGeneratorModel sets the chat model identifier.
func WithGeneratorModel(model string) ConfigOption {
	return func(c *Config) {
		c.GeneratorModel = model
	}
}

// WithEmbeddingModel sets the remote embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the answer token cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithRequestsPerMinute sets the chat request rate limit.
func WithRequestsPerMinute(n int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerMinute = n
	}
}

// DefaultConfig returns a Config for a local OpenAI-compatible server with the
// built-in embedder.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		GeneratorHost:  defaultHost,
		GeneratorModel: "qwen2.5:3b",
		EmbeddingHost:  defaultHost,
		Temperature:    0.1,
		MaxTokens:      512,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithGeneratorModel("gpt-4o-mini"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LLMEnabled reports whether a chat model is configured.
func (c *Config) LLMEnabled() bool {
	return c.GeneratorModel != ""
}

// RemoteEmbeddings reports whether a remote embedding model is configured.
func (c *Config) RemoteEmbeddings() bool {
	return c.EmbeddingModel != ""
}

// Normalize ensures hosts end with /v1, which OpenAI-compatible servers
// (Ollama, LocalAI, vLLM) expect.
func (c *Config) Normalize() {
	c.GeneratorHost = withV1(c.GeneratorHost)
	c.EmbeddingHost = withV1(c.EmbeddingHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate normalizes the configuration and checks it is complete.
func (c *Config) Validate() error {
	c.Normalize()

	if c.LLMEnabled() && c.GeneratorHost == "" {
		return fmt.Errorf("%w: ai config: GeneratorHost is required when GeneratorModel is set", core.ErrInvalidConfig)
	}
	if c.RemoteEmbeddings() && c.EmbeddingHost == "" {
		return fmt.Errorf("%w: ai config: EmbeddingHost is required when EmbeddingModel is set", core.ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: ai config: Temperature must be between 0 and 2", core.ErrInvalidConfig)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: ai config: MaxTokens must be positive", core.ErrInvalidConfig)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: ai config: RequestsPerMinute cannot be negative", core.ErrInvalidConfig)
	}
	return nil
}
