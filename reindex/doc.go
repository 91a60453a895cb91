// Package reindex rebuilds persisted document indexes whose vectors were
// produced by a different embedding model than the one currently configured.
//
// Stored documents keep their parsed segments, so a rebuild re-runs chunking,
// field extraction and embedding without the original file.
package reindex
