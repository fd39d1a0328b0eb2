package gcn

import (
	"math/rand"

	"github.com/viterin/vek"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// CenterMomentum weights the previous running estimate in the center-node
// EMA update: running = momentum*running + (1-momentum)*center.
const CenterMomentum = 0.9

// AttentionCenterAdjacency builds the second-hop node set and adjacency. In
// training mode the batch is split into NumCenters contiguous quarters and
// each quarter contributes one attention-weighted center node; each sample
// connects only to its own quarter's center. A running mean of each center is
// maintained across training calls.
//
// In eval mode the frozen running means stand in for the centers and the
// topology changes shape: every sample links to the first center node only,
// while the centers still form a clique. The train/eval asymmetry is
// deliberate; do not unify the two topologies without revisiting the
// normalization that depends on them.
type AttentionCenterAdjacency struct {
	Features int
	Momentum float64

	// AttWeight and AttBias form the scalar attention projection.
	AttWeight []float64
	AttBias   float64

	// RunningMean is the NumCenters×Features persistent center estimate,
	// updated by momentum blending during training and read-only at eval.
	RunningMean *tensor.Matrix
}

// NewAttentionCenterAdjacency creates a builder for embeddings of the given
// width. The attention projection is initialized N(0, 0.01²) with zero bias.
func NewAttentionCenterAdjacency(features int, rng *rand.Rand) *AttentionCenterAdjacency {
	a := &AttentionCenterAdjacency{
		Features:    features,
		Momentum:    CenterMomentum,
		AttWeight:   make([]float64, features),
		RunningMean: tensor.NewMatrix(NumCenters, features),
	}
	tensor.NormalInit(rng, a.AttWeight, 0.01)
	return a
}

// Forward returns the augmented node features ((N+NumCenters)×Features) and
// the normalized adjacency over them.
//
// Training mode requires N divisible by NumCenters; this precondition is the
// batch sampler's responsibility and is not validated here — a violating
// batch silently produces a shorter final quarter.
func (a *AttentionCenterAdjacency) Forward(x *tensor.Matrix, training bool) (*tensor.Matrix, *tensor.Matrix) {
	if training {
		return a.forwardTrain(x)
	}
	return a.forwardEval(x)
}

func (a *AttentionCenterAdjacency) forwardTrain(x *tensor.Matrix) (*tensor.Matrix, *tensor.Matrix) {
	n := x.Rows
	stride := n / NumCenters

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = vek.Dot(a.AttWeight, x.Row(i)) + a.AttBias
	}

	centers := tensor.NewMatrix(NumCenters, a.Features)
	for q := 0; q < NumCenters; q++ {
		lo, hi := quarterBounds(n, stride, q)

		var sum float64
		for i := lo; i < hi; i++ {
			sum += weights[i]
		}
		center := centers.Row(q)
		for i := lo; i < hi; i++ {
			w := weights[i] / sum
			row := x.Row(i)
			for j := 0; j < a.Features; j++ {
				center[j] += w * row[j]
			}
		}
	}

	xNew := tensor.ConcatRows(x, centers)

	// EMA update of the persistent center estimate. Values are copied, not
	// aliased, so later mutation of the batch cannot leak into the buffer.
	a.RunningMean.ScaleInPlace(a.Momentum)
	for q := 0; q < NumCenters; q++ {
		running := a.RunningMean.Row(q)
		center := centers.Row(q)
		for j := 0; j < a.Features; j++ {
			running[j] += (1 - a.Momentum) * center[j]
		}
	}

	size := n + NumCenters
	adj := tensor.Eye(size)
	for i := n; i < size; i++ {
		for j := n; j < size; j++ {
			adj.Set(i, j, 1.0)
		}
	}
	for q := 0; q < NumCenters; q++ {
		lo, hi := quarterBounds(n, stride, q)
		for i := lo; i < hi; i++ {
			adj.Set(i, n+q, 1.0)
			adj.Set(n+q, i, 1.0)
		}
	}

	return xNew, NormalizeAdjacency(adj)
}

func (a *AttentionCenterAdjacency) forwardEval(x *tensor.Matrix) (*tensor.Matrix, *tensor.Matrix) {
	n := x.Rows
	xNew := tensor.ConcatRows(x, a.RunningMean.Clone())

	size := n + NumCenters
	adj := tensor.Eye(size)
	for i := n; i < size; i++ {
		for j := n; j < size; j++ {
			adj.Set(i, j, 1.0)
		}
	}
	// Eval links every sample to the first center node only.
	for i := 0; i < n; i++ {
		adj.Set(i, n, 1.0)
		adj.Set(n, i, 1.0)
	}

	return xNew, NormalizeAdjacency(adj)
}

// quarterBounds returns the row range of quarter q. The final quarter runs
// to the end of the batch, absorbing any remainder when n is not divisible
// by NumCenters.
func quarterBounds(n, stride, q int) (int, int) {
	lo := q * stride
	hi := lo + stride
	if q == NumCenters-1 {
		hi = n
	}
	return lo, hi
}
