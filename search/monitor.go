package search

import (
	"github.com/poiesic/docqa/core"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during retrieval.
type RetrievalMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterSimilaritySearch(hits []core.Hit)
	AfterScoring(top, agreement, lexical float64)
	Finish(result *core.RetrievalResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)    {}
func (n *noopMonitor) AfterSimilaritySearch(_ []core.Hit) {}
func (n *noopMonitor) AfterScoring(_, _, _ float64)       {}
func (n *noopMonitor) Finish(_ *core.RetrievalResult)     {}
