package gcn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/adalundhe/reidgraph/core/tensor"
)

func attentionInput(n, features int, seed int64) *tensor.Matrix {
	rng := rand.New(rand.NewSource(seed))
	x := tensor.NewMatrix(n, features)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64() + 2
	}
	return x
}

func TestTrainingCentersAreQuarterConvexCombinations(t *testing.T) {
	const features = 3
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(1)))

	x := tensor.NewMatrix(8, features)
	for i := 0; i < 8; i++ {
		for j := 0; j < features; j++ {
			x.Set(i, j, float64(i+1))
		}
	}
	// A constant projection (zero weight, nonzero bias) assigns every
	// sample the same attention score, so after per-quarter normalization
	// each center must be the plain quarter mean.
	for j := range a.AttWeight {
		a.AttWeight[j] = 0
	}
	a.AttBias = 1

	xNew, _ := a.Forward(x, true)

	if xNew.Rows != 8+NumCenters {
		t.Fatalf("augmented rows = %d, want %d", xNew.Rows, 8+NumCenters)
	}
	for q := 0; q < NumCenters; q++ {
		lo := q * 2
		for j := 0; j < features; j++ {
			want := (x.At(lo, j) + x.At(lo+1, j)) / 2
			got := xNew.At(8+q, j)
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("center %d feature %d = %g, want quarter mean %g", q, j, got, want)
			}
		}
	}
}

func TestTrainingAttentionWeightsSumToOnePerQuarter(t *testing.T) {
	const features = 4
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(2)))
	x := attentionInput(8, features, 3)

	xNew, _ := a.Forward(x, true)

	// With weights normalized to sum 1 inside each quarter, every center
	// is an affine combination of its quarter's rows: applying the same
	// normalization by hand must reproduce the center exactly.
	for q := 0; q < NumCenters; q++ {
		lo, hi := q*2, q*2+2
		var sum float64
		raw := make([]float64, 0, hi-lo)
		for i := lo; i < hi; i++ {
			w := a.AttBias
			for j := 0; j < features; j++ {
				w += a.AttWeight[j] * x.At(i, j)
			}
			raw = append(raw, w)
			sum += w
		}

		var total float64
		want := make([]float64, features)
		for k, i := 0, lo; i < hi; i, k = i+1, k+1 {
			w := raw[k] / sum
			total += w
			for j := 0; j < features; j++ {
				want[j] += w * x.At(i, j)
			}
		}
		if math.Abs(total-1.0) > 1e-12 {
			t.Fatalf("quarter %d normalized weights sum to %g, want 1", q, total)
		}
		for j := 0; j < features; j++ {
			if math.Abs(xNew.At(8+q, j)-want[j]) > 1e-9 {
				t.Fatalf("center %d feature %d = %g, want %g", q, j, xNew.At(8+q, j), want[j])
			}
		}
	}
}

func TestRunningMeanMomentumUpdate(t *testing.T) {
	const features = 2
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(4)))

	old := a.RunningMean.Clone()
	x := attentionInput(8, features, 5)
	xNew, _ := a.Forward(x, true)

	for q := 0; q < NumCenters; q++ {
		for j := 0; j < features; j++ {
			center := xNew.At(8+q, j)
			want := a.Momentum*old.At(q, j) + (1-a.Momentum)*center
			got := a.RunningMean.At(q, j)
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("running mean (%d,%d) = %g, want %g", q, j, got, want)
			}
		}
	}
}

func TestRunningMeanDoesNotAliasBatch(t *testing.T) {
	const features = 2
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(6)))

	x := attentionInput(8, features, 7)
	xNew, _ := a.Forward(x, true)

	snapshot := a.RunningMean.Clone()
	for i := range xNew.Data {
		xNew.Data[i] = 999
	}
	for i := range snapshot.Data {
		if a.RunningMean.Data[i] != snapshot.Data[i] {
			t.Fatal("running mean aliases the augmented batch")
		}
	}
}

func TestEvalUsesFrozenRunningMeans(t *testing.T) {
	const features = 3
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(8)))

	// Train once to move the buffer, then snapshot it.
	a.Forward(attentionInput(8, features, 9), true)
	snapshot := a.RunningMean.Clone()

	x := attentionInput(6, features, 10)
	xNew, _ := a.Forward(x, false)

	for q := 0; q < NumCenters; q++ {
		for j := 0; j < features; j++ {
			if xNew.At(6+q, j) != snapshot.At(q, j) {
				t.Fatalf("eval center %d feature %d = %g, want frozen %g", q, j, xNew.At(6+q, j), snapshot.At(q, j))
			}
		}
	}
	// Eval must not advance the buffer.
	for i := range snapshot.Data {
		if a.RunningMean.Data[i] != snapshot.Data[i] {
			t.Fatal("eval forward mutated the running mean buffer")
		}
	}
}

// TestTrainEvalTopologyAsymmetry pins down the deliberate difference between
// the two adjacency shapes: training links each quarter to its own center
// while eval links every sample to the first center only. The asymmetry is
// intentional; this test exists so a change to either topology fails loudly.
func TestTrainEvalTopologyAsymmetry(t *testing.T) {
	const features = 2
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(11)))

	x := attentionInput(8, features, 12)
	_, trainAdj := a.Forward(x, true)
	_, evalAdj := a.Forward(x, false)

	n := 8

	// Training: sample 0 (quarter 0) touches center 0 only; sample 7
	// (quarter 3) touches center 3 only.
	if trainAdj.At(0, n) == 0 {
		t.Error("train: quarter-0 sample not linked to center 0")
	}
	if trainAdj.At(0, n+3) != 0 {
		t.Error("train: quarter-0 sample linked to center 3")
	}
	if trainAdj.At(7, n+3) == 0 {
		t.Error("train: quarter-3 sample not linked to center 3")
	}
	if trainAdj.At(7, n) != 0 {
		t.Error("train: quarter-3 sample linked to center 0")
	}

	// Eval: every sample touches center 0 and no other center.
	for i := 0; i < n; i++ {
		if evalAdj.At(i, n) == 0 {
			t.Errorf("eval: sample %d not linked to center 0", i)
		}
		for q := 1; q < NumCenters; q++ {
			if evalAdj.At(i, n+q) != 0 {
				t.Errorf("eval: sample %d linked to center %d", i, q)
			}
		}
	}
}

func TestAdjacencySymmetryBothModes(t *testing.T) {
	const features = 2
	a := NewAttentionCenterAdjacency(features, rand.New(rand.NewSource(13)))
	x := attentionInput(8, features, 14)

	for _, training := range []bool{true, false} {
		_, adj := a.Forward(x, training)
		for i := 0; i < adj.Rows; i++ {
			for j := 0; j < adj.Cols; j++ {
				if math.Abs(adj.At(i, j)-adj.At(j, i)) > 1e-12 {
					t.Fatalf("training=%v adjacency not symmetric at (%d,%d)", training, i, j)
				}
			}
		}
	}
}
