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


// Package ai defines the embedding and language-model contracts used by docqa.
//
// The package is designed around three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces grounded answers from a prompt
//   - Provider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/hashing: Deterministic local embedder, the default
//   - ai/openai: OpenAI-compatible chat generator and remote embedder
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inspect call counts and recorded requests.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithGeneratorModel("qwen2.5:3b"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
package ai
