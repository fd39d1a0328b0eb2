package model

import (
	"math/rand"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// Linear is a fully connected layer storing its weight as In×Out so the
// forward pass is a single row-major matrix product.
type Linear struct {
	In     int
	Out    int
	Weight *tensor.Matrix
	Bias   []float64 // nil when disabled
}

// NewLinear creates a layer with N(0, std²) weights and, when enabled, a
// zero bias.
func NewLinear(in, out int, bias bool, std float64, rng *rand.Rand) *Linear {
	l := &Linear{
		In:     in,
		Out:    out,
		Weight: tensor.NewMatrix(in, out),
	}
	tensor.NormalInit(rng, l.Weight.Data, std)
	if bias {
		l.Bias = make([]float64, out)
	}
	return l
}

// Forward computes x·Weight (+ Bias).
func (l *Linear) Forward(x *tensor.Matrix) *tensor.Matrix {
	out := tensor.MatMul(x, l.Weight)
	if l.Bias != nil {
		out.AddRowInPlace(l.Bias)
	}
	return out
}
