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


// Package search retrieves ranked evidence chunks from a document index and
// scores how much the evidence can be trusted.
//
// The Retriever combines three signals into one confidence value:
//   - Semantic similarity of the best chunk
//   - Agreement between the similarities of the returned chunks
//   - Lexical corroboration of the query by the best chunk
//
// When even the best chunk is a weak match the result is flagged as low
// confidence instead of failing, so callers can still answer from it.
package search
