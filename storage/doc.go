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


// Package storage provides the persistence abstraction layer for docqa.
//
// This package defines the repository interface that decouples index storage
// from the engine. Persistence is optional: an engine without a repository
// keeps every index in memory only.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to keep callers independent of the
// storage backend:
//
//	repo, err := badger.NewRepository(path, logger)  // returns storage.IndexRepository
//
// # Versioning
//
// Every stored index records the id of the embedding model that produced its
// vectors. Loading an index under a different model id fails with
// ErrStaleIndex; the reindex package rebuilds such entries from the stored
// document segments.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
