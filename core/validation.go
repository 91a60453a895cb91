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


package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateQuery validates a Query according to domain rules.
//
// Validation rules:
//   - Text must contain at least one non-space character
//   - TypeHint must be empty or a known QueryType
func ValidateQuery(q Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuery
	}
	if q.TypeHint != "" {
		if _, ok := ParseQueryType(string(q.TypeHint)); !ok {
			return fmt.Errorf("unknown query type %q", q.TypeHint)
		}
	}
	return nil
}

// ValidateDocument checks that a parsed document has extractable text.
//
// Validation rules:
//   - At least one segment
//   - At least one segment with non-space text
//   - Format must be set
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrCorruptDocument)
	}
	if doc.Format == "" {
		return fmt.Errorf("%w: %w", ErrCorruptDocument, errors.New("format not set"))
	}
	for _, s := range doc.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no extractable text", ErrCorruptDocument)
}

// ValidateVectors checks that every vector has the same non-zero dimension.
// Returns the shared dimension.
func ValidateVectors(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, errors.New("vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return dim, nil
}
