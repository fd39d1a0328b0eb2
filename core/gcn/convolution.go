// Package gcn implements the graph-convolutional refinement stage: a
// two-layer graph network over an augmented node set of per-sample
// embeddings plus synthetic cluster-center nodes, with symmetric
// degree-normalized adjacency construction for both graph hops.
package gcn

import (
	"math"
	"math/rand"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// GraphConvolution is a single graph convolution layer computing
// adj · (nodes · W) + bias. No activation is applied internally; the
// composing network inserts nonlinearities between stacked layers.
type GraphConvolution struct {
	InFeatures  int
	OutFeatures int
	Weight      *tensor.Matrix // InFeatures × OutFeatures
	Bias        []float64      // OutFeatures, nil when disabled
}

// NewGraphConvolution creates a layer with weight and bias drawn uniformly
// from ±1/sqrt(outFeatures).
func NewGraphConvolution(inFeatures, outFeatures int, bias bool, rng *rand.Rand) *GraphConvolution {
	gc := &GraphConvolution{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		Weight:      tensor.NewMatrix(inFeatures, outFeatures),
	}
	if bias {
		gc.Bias = make([]float64, outFeatures)
	}
	gc.ResetParameters(rng)
	return gc
}

// ResetParameters re-draws weight and bias from ±1/sqrt(OutFeatures).
func (gc *GraphConvolution) ResetParameters(rng *rand.Rand) {
	stdv := 1.0 / math.Sqrt(float64(gc.OutFeatures))
	tensor.UniformInit(rng, gc.Weight.Data, -stdv, stdv)
	if gc.Bias != nil {
		tensor.UniformInit(rng, gc.Bias, -stdv, stdv)
	}
}

// Forward computes adj · (nodes · Weight) + Bias. nodes is M×InFeatures and
// adj is M×M over the same node ordering.
func (gc *GraphConvolution) Forward(nodes, adj *tensor.Matrix) *tensor.Matrix {
	support := tensor.MatMul(nodes, gc.Weight)
	out := tensor.MatMul(adj, support)
	if gc.Bias != nil {
		out.AddRowInPlace(gc.Bias)
	}
	return out
}

// LeakySlope is the negative slope of the activation between the two graph
// convolution layers.
const LeakySlope = 0.2

// TwoLayerGCN stacks two graph convolutions with a leaky ReLU between them.
// Each hop consumes its own adjacency matrix, so the two layers may propagate
// over different connectivity.
type TwoLayerGCN struct {
	GC1 *GraphConvolution
	GC2 *GraphConvolution
}

// NewTwoLayerGCN builds a two-layer graph network
// nfeat → nhid → nclass. The refinement stage uses equal widths throughout so
// the output can be fused residually with the input embedding.
func NewTwoLayerGCN(nfeat, nhid, nclass int, rng *rand.Rand) *TwoLayerGCN {
	return &TwoLayerGCN{
		GC1: NewGraphConvolution(nfeat, nhid, true, rng),
		GC2: NewGraphConvolution(nhid, nclass, true, rng),
	}
}

// Forward applies GC1 with adj1, a leaky ReLU, then GC2 with adj2.
func (g *TwoLayerGCN) Forward(x, adj1, adj2 *tensor.Matrix) *tensor.Matrix {
	h := g.GC1.Forward(x, adj1)
	h.LeakyReLUInPlace(LeakySlope)
	return g.GC2.Forward(h, adj2)
}
