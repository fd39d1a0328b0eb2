package gcn

import (
	"math"
	"testing"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// rawFirstLayer mirrors the unnormalized first-hop construction: identity
// self-loops everywhere plus the center clique.
func rawFirstLayer(n int) *tensor.Matrix {
	size := n + NumCenters
	a := tensor.Eye(size)
	for i := n; i < size; i++ {
		for j := n; j < size; j++ {
			a.Set(i, j, 1.0)
		}
	}
	return a
}

func TestRawAdjacencyDiagonalAndDegrees(t *testing.T) {
	a := rawFirstLayer(8)

	for i := 0; i < a.Rows; i++ {
		if a.At(i, i) != 1.0 {
			t.Errorf("diagonal entry %d = %g, want 1", i, a.At(i, i))
		}
	}
	for i, s := range a.RowSums() {
		if s < 1.0 {
			t.Errorf("row %d sum = %g, want >= 1", i, s)
		}
	}
}

func TestNormalizeAdjacencyKnownValues(t *testing.T) {
	// Two nodes with self-loops and one mutual edge: every degree is 2, so
	// every normalized entry is 1/2.
	a := tensor.NewMatrixFrom(2, 2, []float64{1, 1, 1, 1})
	adj := NormalizeAdjacency(a)
	for i, v := range adj.Data {
		if math.Abs(v-0.5) > 1e-12 {
			t.Errorf("entry %d = %g, want 0.5", i, v)
		}
	}
}

func TestNormalizeAdjacencyIsolatedSelfLoop(t *testing.T) {
	// A lone self-loop normalizes to exactly 1.
	a := tensor.Eye(1)
	adj := NormalizeAdjacency(a)
	if adj.At(0, 0) != 1.0 {
		t.Fatalf("normalized self-loop = %g, want 1", adj.At(0, 0))
	}
}

func TestFirstLayerAdjacencySymmetric(t *testing.T) {
	builder := NewFirstLayerAdjacency()
	adj := builder.Forward(8)

	size := 8 + NumCenters
	if adj.Rows != size || adj.Cols != size {
		t.Fatalf("adjacency shape = %d×%d, want %d×%d", adj.Rows, adj.Cols, size, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if math.Abs(adj.At(i, j)-adj.At(j, i)) > 1e-12 {
				t.Fatalf("adjacency not symmetric at (%d,%d): %g vs %g", i, j, adj.At(i, j), adj.At(j, i))
			}
		}
	}
}

func TestFirstLayerAdjacencyEntries(t *testing.T) {
	builder := NewFirstLayerAdjacency()
	adj := builder.Forward(4)

	// Sample nodes have degree 1: self-entry normalizes to 1, no edges to
	// centers. Center nodes have degree NumCenters: clique entries are
	// 1/NumCenters.
	for i := 0; i < 4; i++ {
		if math.Abs(adj.At(i, i)-1.0) > 1e-12 {
			t.Errorf("sample self-entry (%d,%d) = %g, want 1", i, i, adj.At(i, i))
		}
		for j := 4; j < 4+NumCenters; j++ {
			if adj.At(i, j) != 0 {
				t.Errorf("sample-center entry (%d,%d) = %g, want 0", i, j, adj.At(i, j))
			}
		}
	}
	for i := 4; i < 4+NumCenters; i++ {
		for j := 4; j < 4+NumCenters; j++ {
			want := 1.0 / NumCenters
			if math.Abs(adj.At(i, j)-want) > 1e-12 {
				t.Errorf("center entry (%d,%d) = %g, want %g", i, j, adj.At(i, j), want)
			}
		}
	}

	// All entries finite and within [0, 1].
	for i, v := range adj.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			t.Fatalf("entry %d out of range: %g", i, v)
		}
	}
}

func TestFirstLayerAdjacencyDeterministicAndCached(t *testing.T) {
	builder := NewFirstLayerAdjacency()
	first := builder.Forward(16)
	second := builder.Forward(16)

	if first != second {
		t.Fatal("expected cached adjacency to be reused for the same batch size")
	}

	other := NewFirstLayerAdjacency().Forward(16)
	for i := range first.Data {
		if first.Data[i] != other.Data[i] {
			t.Fatal("adjacency construction is not deterministic")
		}
	}
}
