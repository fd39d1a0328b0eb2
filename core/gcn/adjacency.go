package gcn

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// NumCenters is the number of synthetic center nodes appended to every
// batch: one per quarter of a within-domain mini-batch.
const NumCenters = 4

// NormalizeAdjacency applies symmetric degree normalization
// D^-1/2 · A^T · D^-1/2 where D is the diagonal of row sums. Every node is
// expected to carry at least a self-loop so that no row sum is zero.
func NormalizeAdjacency(a *tensor.Matrix) *tensor.Matrix {
	n := a.Rows
	d := make([]float64, n)
	for i, s := range a.RowSums() {
		d[i] = math.Pow(s, -0.5)
	}
	out := tensor.NewMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Data[i*n+j] = a.Data[j*n+i] * d[i] * d[j]
		}
	}
	return out
}

// FirstLayerAdjacency builds the first-hop adjacency over N samples plus
// NumCenters center nodes: samples carry only self-loops while the centers
// form a fully connected clique with no edges to sample nodes. The result
// depends only on N, so normalized matrices are cached by batch size.
//
// Cached matrices are shared between calls and must be treated as read-only.
type FirstLayerAdjacency struct {
	cache *lru.Cache[int, *tensor.Matrix]
}

// NewFirstLayerAdjacency creates a builder with a bounded adjacency cache.
func NewFirstLayerAdjacency() *FirstLayerAdjacency {
	cache, _ := lru.New[int, *tensor.Matrix](16)
	return &FirstLayerAdjacency{cache: cache}
}

// Forward returns the normalized (N+NumCenters)×(N+NumCenters) first-hop
// adjacency for a batch of n samples.
func (f *FirstLayerAdjacency) Forward(n int) *tensor.Matrix {
	if adj, ok := f.cache.Get(n); ok {
		return adj
	}

	size := n + NumCenters
	a := tensor.Eye(size)
	for i := n; i < size; i++ {
		for j := n; j < size; j++ {
			a.Set(i, j, 1.0)
		}
	}

	adj := NormalizeAdjacency(a)
	f.cache.Add(n, adj)
	return adj
}
