package index

import (
	"slices"
	"sync"
	"time"

	"github.com/poiesic/docqa/core"
)

// Snapshot is everything known about one indexed document. Snapshots are built
// privately, published whole, and never mutated afterwards.
type Snapshot struct {
	Document  *core.Document
	Chunks    []*core.Chunk
	Index     *Index
	Fields    []core.StructuredField
	IndexedAt time.Time
}

// Summary describes the snapshot for listings.
func (s *Snapshot) Summary() core.DocumentSummary {
	return core.DocumentSummary{
		Id:             s.Document.Id,
		Format:         s.Document.Format,
		Kind:           s.Document.Kind,
		Segments:       len(s.Document.Segments),
		Chunks:         len(s.Chunks),
		Words:          s.Document.WordCount(),
		EstimatedPages: s.Document.EstimatedPages(),
		KeySections:    s.Document.KeySections(),
		Fields:         len(s.Fields),
		EmbeddingModel: s.Index.ModelID(),
		IndexedAt:      s.IndexedAt,
	}
}

// Registry maps document ids to their current snapshot.
// The lock guards only the map; readers use snapshots without holding it.
type Registry struct {
	mu        sync.RWMutex
	snapshots map[core.ID]*Snapshot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{snapshots: make(map[core.ID]*Snapshot)}
}

// Publish makes snap the current snapshot for its document, replacing any
// previous one. Returns the replaced snapshot, if any.
func (r *Registry) Publish(snap *Snapshot) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.snapshots[snap.Document.Id]
	r.snapshots[snap.Document.Id] = snap
	return prev
}

// Get returns the current snapshot for id.
func (r *Registry) Get(id core.ID) (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[id]
	return snap, ok
}

// Remove drops the snapshot for id. Queries already holding it are unaffected.
func (r *Registry) Remove(id core.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.snapshots[id]
	delete(r.snapshots, id)
	return ok
}

// Len returns the number of published documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots)
}

// IDs returns the published document ids in ascending order.
func (r *Registry) IDs() []core.ID {
	r.mu.RLock()
	ids := make([]core.ID, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
