// Package backbone implements the residual bottleneck feature extractor:
// a 4-stage stack of bottleneck blocks whose interior normalization routes
// per-sample through domain-specific statistics, ending in global average
// pooling that collapses each sample to a single embedding row.
package backbone

import (
	"math"
	"math/rand"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// Conv2d is a bias-free 2-D convolution. Weights are stored row-major as
// OutChannels × (InChannels·Kernel·Kernel), matching the im2col layout used
// by Forward.
type Conv2d struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int
	Weight      *tensor.Matrix
}

// NewConv2d creates a convolution with He-style initialization
// N(0, sqrt(2/(k·k·outChannels))).
func NewConv2d(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv2d {
	c := &Conv2d{
		InChannels:  inChannels,
		OutChannels: outChannels,
		Kernel:      kernel,
		Stride:      stride,
		Padding:     padding,
		Weight:      tensor.NewMatrix(outChannels, inChannels*kernel*kernel),
	}
	fan := float64(kernel * kernel * outChannels)
	tensor.NormalInit(rng, c.Weight.Data, math.Sqrt(2.0/fan))
	return c
}

// OutSize returns the spatial output size for an input extent.
func (c *Conv2d) OutSize(in int) int {
	return (in+2*c.Padding-c.Kernel)/c.Stride + 1
}

// Forward convolves the batch. Each sample is lowered to an im2col matrix
// and multiplied against the weight matrix in a single Gemm.
func (c *Conv2d) Forward(x *tensor.FeatureMap) *tensor.FeatureMap {
	outH := c.OutSize(x.H)
	outW := c.OutSize(x.W)
	out := tensor.NewFeatureMap(x.N, c.OutChannels, outH, outW)

	colRows := c.InChannels * c.Kernel * c.Kernel
	col := tensor.NewMatrix(colRows, outH*outW)
	for n := 0; n < x.N; n++ {
		c.im2col(x, n, col, outH, outW)
		result := tensor.NewMatrixFrom(c.OutChannels, outH*outW, out.Sample(n))
		tensor.MatMulInto(c.Weight, col, result)
	}
	return out
}

// im2col lowers sample n into col, one column per output pixel. Padding
// positions contribute zeros.
func (c *Conv2d) im2col(x *tensor.FeatureMap, n int, col *tensor.Matrix, outH, outW int) {
	outPixels := outH * outW
	row := 0
	for ch := 0; ch < c.InChannels; ch++ {
		plane := x.Channel(n, ch)
		for kh := 0; kh < c.Kernel; kh++ {
			for kw := 0; kw < c.Kernel; kw++ {
				dst := col.Data[row*outPixels : (row+1)*outPixels]
				idx := 0
				for oh := 0; oh < outH; oh++ {
					ih := oh*c.Stride - c.Padding + kh
					for ow := 0; ow < outW; ow++ {
						iw := ow*c.Stride - c.Padding + kw
						if ih < 0 || ih >= x.H || iw < 0 || iw >= x.W {
							dst[idx] = 0
						} else {
							dst[idx] = plane[ih*x.W+iw]
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
