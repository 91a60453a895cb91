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

import "errors"

// Ingestion errors
var (
	// ErrUnsupportedFormat indicates an unknown file extension or MIME type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument indicates the parser could not read the document bytes.
	ErrCorruptDocument = errors.New("corrupt document")
)

// Query errors
var (
	// ErrUnknownDocument indicates no index exists for the requested document.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrEmptyQuery indicates the query text is blank.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyIndex indicates an index was queried before it was built.
	ErrEmptyIndex = errors.New("index is empty")
)

// Language-model collaborator errors. These are recovered by the extractive fallback.
var (
	// ErrLLMUnavailable indicates the language model is not configured or not reachable.
	ErrLLMUnavailable = errors.New("language model unavailable")

	// ErrRateLimited indicates the language model rejected the request due to rate limiting.
	ErrRateLimited = errors.New("language model rate limited")

	// ErrLLMTimeout indicates the language model did not answer in time.
	ErrLLMTimeout = errors.New("language model timed out")
)

// ErrInvalidConfig indicates a component configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")
