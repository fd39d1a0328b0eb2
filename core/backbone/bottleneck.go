package backbone

import (
	"math/rand"

	"github.com/adalundhe/reidgraph/core/dsnorm"
	"github.com/adalundhe/reidgraph/core/tensor"
)

// Expansion is the bottleneck output-channel multiplier.
const Expansion = 4

// Downsample matches the residual branch to the block output shape: a 1×1
// strided convolution followed by domain-routed normalization.
type Downsample struct {
	Conv *Conv2d
	BN   *dsnorm.DomainBatchNorm2d
}

// Bottleneck is a three-convolution residual block. Every convolution is
// followed by domain-routed 2-D normalization; ReLU follows the first two
// and the residual sum.
type Bottleneck struct {
	Conv1 *Conv2d
	BN1   *dsnorm.DomainBatchNorm2d
	Conv2 *Conv2d
	BN2   *dsnorm.DomainBatchNorm2d
	Conv3 *Conv2d
	BN3   *dsnorm.DomainBatchNorm2d

	Downsample *Downsample
}

// NewBottleneck builds a block mapping inPlanes channels to
// planes*Expansion, striding in the 3×3 convolution.
func NewBottleneck(inPlanes, planes, stride, numDomains int, downsample *Downsample, rng *rand.Rand) *Bottleneck {
	return &Bottleneck{
		Conv1:      NewConv2d(inPlanes, planes, 1, 1, 0, rng),
		BN1:        dsnorm.NewDomainBatchNorm2d(planes, numDomains),
		Conv2:      NewConv2d(planes, planes, 3, stride, 1, rng),
		BN2:        dsnorm.NewDomainBatchNorm2d(planes, numDomains),
		Conv3:      NewConv2d(planes, planes*Expansion, 1, 1, 0, rng),
		BN3:        dsnorm.NewDomainBatchNorm2d(planes*Expansion, numDomains),
		Downsample: downsample,
	}
}

// Forward runs the block, threading the domain labels through every
// normalization.
func (b *Bottleneck) Forward(x *tensor.FeatureMap, labels []int, training bool) (*tensor.FeatureMap, []int) {
	residual := x

	out := b.Conv1.Forward(x)
	out, _ = b.BN1.Forward(out, labels, training)
	out.ReLUInPlace()

	out = b.Conv2.Forward(out)
	out, _ = b.BN2.Forward(out, labels, training)
	out.ReLUInPlace()

	out = b.Conv3.Forward(out)
	out, _ = b.BN3.Forward(out, labels, training)

	if b.Downsample != nil {
		residual = b.Downsample.Conv.Forward(x)
		residual, _ = b.Downsample.BN.Forward(residual, labels, training)
	}

	out.AddInPlace(residual)
	out.ReLUInPlace()
	return out, labels
}
