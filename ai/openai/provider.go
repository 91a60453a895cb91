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


package openai

import (
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/hashing"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// Without a remote embedding model it embeds locally with the hashing embedder;
// without a generator model it provides no generator.
type Provider struct {
	config    *ai.Config
	embedder  ai.Embedder
	generator *Generator
	logger    *slog.Logger
}

// NewProvider creates a new AI provider.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var embedder ai.Embedder
	if config.RemoteEmbeddings() {
		remote, err := newEmbedder(config)
		if err != nil {
			return nil, err
		}
		embedder = remote
	} else {
		local, err := hashing.New()
		if err != nil {
			return nil, err
		}
		embedder = local
	}

	var generator *Generator
	if config.LLMEnabled() {
		var err error
		generator, err = newGenerator(config)
		if err != nil {
			return nil, err
		}
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready", "embedding_model", embedder.ModelID(), "llm", config.LLMEnabled())

	return &Provider{
		config:    config,
		embedder:  embedder,
		generator: generator,
		logger:    logger,
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the answer generator, or nil when no model is configured.
func (p *Provider) Generator() ai.Generator {
	if p.generator == nil {
		return nil
	}
	return p.generator
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
