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


package ingestion

import (
	"context"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
)

// build accumulates the state of one document as it moves through the stages.
// It is private to a single Build call until published as a snapshot.
type build struct {
	doc    *core.Document
	chunks []*core.Chunk
	fields []core.StructuredField
	index  *index.Index
}

// processor is an internal interface for one ingestion stage.
// Implementations handle specific tasks like chunking or embedding.
type processor interface {
	// name identifies the stage in logs and errors.
	name() string

	// process advances the build. It must leave the build untouched on error.
	process(ctx context.Context, b *build) error
}
