// Package ingestion provides pipeline orchestration for turning raw documents
// into queryable snapshots.
//
// The Pipeline type manages the ingestion workflow for one document:
//   - Parsing the raw bytes into page or section segments
//   - Splitting the text into overlapping chunks
//   - Detecting the document kind and extracting structured fields
//   - Embedding the chunks into an index on a worker pool
//
// A snapshot is returned only when every stage succeeds. Failed ingestion
// returns an error and no partial state.
package ingestion
