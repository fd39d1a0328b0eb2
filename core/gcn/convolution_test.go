package gcn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/adalundhe/reidgraph/core/tensor"
)

func TestGraphConvolutionInitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	gc := NewGraphConvolution(16, 8, true, rng)

	bound := 1.0 / math.Sqrt(8)
	for i, v := range gc.Weight.Data {
		if v < -bound || v > bound {
			t.Fatalf("weight %d = %g outside ±%g", i, v, bound)
		}
	}
	for i, v := range gc.Bias {
		if v < -bound || v > bound {
			t.Fatalf("bias %d = %g outside ±%g", i, v, bound)
		}
	}
}

func TestGraphConvolutionLinearInInput(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	gc := NewGraphConvolution(4, 4, true, rng)

	nodes := tensor.NewMatrix(3, 4)
	for i := range nodes.Data {
		nodes.Data[i] = rng.NormFloat64()
	}
	adj := tensor.Eye(3)

	base := gc.Forward(nodes, adj)

	scaled := nodes.Clone()
	scaled.ScaleInPlace(2.5)
	scaledOut := gc.Forward(scaled, adj)

	// Scaling the input scales the support term; the bias is unaffected,
	// so out(αx) - b = α(out(x) - b).
	for i := 0; i < base.Rows; i++ {
		for j := 0; j < base.Cols; j++ {
			b := gc.Bias[j]
			want := 2.5*(base.At(i, j)-b) + b
			if math.Abs(scaledOut.At(i, j)-want) > 1e-9 {
				t.Fatalf("(%d,%d) = %g, want %g", i, j, scaledOut.At(i, j), want)
			}
		}
	}
}

func TestGraphConvolutionNoBias(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	gc := NewGraphConvolution(4, 2, false, rng)
	if gc.Bias != nil {
		t.Fatal("bias allocated despite bias=false")
	}

	nodes := tensor.NewMatrix(2, 4)
	out := gc.Forward(nodes, tensor.Eye(2))
	for i, v := range out.Data {
		if v != 0 {
			t.Fatalf("zero input produced nonzero output at %d: %g", i, v)
		}
	}
}

func TestGraphConvolutionAdjacencyPropagation(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	gc := NewGraphConvolution(2, 2, false, rng)

	nodes := tensor.NewMatrixFrom(2, 2, []float64{1, 2, 3, 4})

	// An adjacency that swaps the two nodes must swap the output rows
	// relative to identity propagation.
	identity := gc.Forward(nodes, tensor.Eye(2))
	swap := tensor.NewMatrixFrom(2, 2, []float64{0, 1, 1, 0})
	swapped := gc.Forward(nodes, swap)

	for j := 0; j < 2; j++ {
		if math.Abs(swapped.At(0, j)-identity.At(1, j)) > 1e-12 {
			t.Fatalf("row swap not propagated at column %d", j)
		}
		if math.Abs(swapped.At(1, j)-identity.At(0, j)) > 1e-12 {
			t.Fatalf("row swap not propagated at column %d", j)
		}
	}
}

func TestTwoLayerGCNOutputWidth(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := NewTwoLayerGCN(8, 8, 8, rng)

	x := tensor.NewMatrix(6, 8)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}

	out := g.Forward(x, tensor.Eye(6), tensor.Eye(6))
	if out.Rows != 6 || out.Cols != 8 {
		t.Fatalf("output shape = %d×%d, want 6×8", out.Rows, out.Cols)
	}
}

func TestTwoLayerGCNUsesDistinctAdjacencies(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	g := NewTwoLayerGCN(4, 4, 4, rng)

	x := tensor.NewMatrix(2, 4)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}

	eye := tensor.Eye(2)
	swap := tensor.NewMatrixFrom(2, 2, []float64{0, 1, 1, 0})

	same := g.Forward(x, eye, eye)
	different := g.Forward(x, eye, swap)

	identical := true
	for i := range same.Data {
		if same.Data[i] != different.Data[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Fatal("second-hop adjacency had no effect on the output")
	}
}
