package backbone

import (
	"math"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// MaxPool2d is a max pooling window with implicit -Inf padding.
type MaxPool2d struct {
	Kernel  int
	Stride  int
	Padding int
}

// Forward pools each channel plane independently.
func (p *MaxPool2d) Forward(x *tensor.FeatureMap) *tensor.FeatureMap {
	outH := (x.H+2*p.Padding-p.Kernel)/p.Stride + 1
	outW := (x.W+2*p.Padding-p.Kernel)/p.Stride + 1
	out := tensor.NewFeatureMap(x.N, x.C, outH, outW)

	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Channel(n, c)
			dst := out.Channel(n, c)
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					best := math.Inf(-1)
					for kh := 0; kh < p.Kernel; kh++ {
						ih := oh*p.Stride - p.Padding + kh
						if ih < 0 || ih >= x.H {
							continue
						}
						for kw := 0; kw < p.Kernel; kw++ {
							iw := ow*p.Stride - p.Padding + kw
							if iw < 0 || iw >= x.W {
								continue
							}
							if v := src[ih*x.W+iw]; v > best {
								best = v
							}
						}
					}
					dst[oh*outW+ow] = best
				}
			}
		}
	}
	return out
}

// GlobalAvgPool collapses every channel plane to its mean, producing the
// N×C embedding matrix.
func GlobalAvgPool(x *tensor.FeatureMap) *tensor.Matrix {
	out := tensor.NewMatrix(x.N, x.C)
	plane := float64(x.H * x.W)
	for n := 0; n < x.N; n++ {
		row := out.Row(n)
		for c := 0; c < x.C; c++ {
			var s float64
			for _, v := range x.Channel(n, c) {
				s += v
			}
			row[c] = s / plane
		}
	}
	return out
}
