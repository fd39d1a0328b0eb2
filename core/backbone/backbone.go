package backbone

import (
	"math/rand"

	"github.com/adalundhe/reidgraph/core/dsnorm"
	"github.com/adalundhe/reidgraph/core/tensor"
)

// StageBlocks is the per-stage block count of the 50-layer configuration.
var StageBlocks = [4]int{3, 4, 6, 3}

// stageStrides keeps the final stage at stride 1 so the last feature map
// retains spatial resolution before pooling.
var stageStrides = [4]int{1, 2, 2, 1}

// stagePlanes is the bottleneck width of each stage before expansion.
var stagePlanes = [4]int{64, 128, 256, 512}

// Backbone is the residual feature extractor. Forward produces the pooled
// N×OutFeatures embedding matrix; all interior normalization is routed by
// the per-sample domain labels.
type Backbone struct {
	Conv1   *Conv2d
	BN1     *dsnorm.DomainBatchNorm2d
	MaxPool *MaxPool2d
	Stages  [4][]*Bottleneck

	OutFeatures int
}

// New constructs a 50-layer backbone with numDomains normalization slots per
// layer.
func New(numDomains int, rng *rand.Rand) *Backbone {
	b := &Backbone{
		Conv1:       NewConv2d(3, 64, 7, 2, 3, rng),
		BN1:         dsnorm.NewDomainBatchNorm2d(64, numDomains),
		MaxPool:     &MaxPool2d{Kernel: 3, Stride: 2, Padding: 1},
		OutFeatures: stagePlanes[3] * Expansion,
	}

	inPlanes := 64
	for s := 0; s < 4; s++ {
		b.Stages[s], inPlanes = makeStage(inPlanes, stagePlanes[s], StageBlocks[s], stageStrides[s], numDomains, rng)
	}
	return b
}

func makeStage(inPlanes, planes, blocks, stride, numDomains int, rng *rand.Rand) ([]*Bottleneck, int) {
	var downsample *Downsample
	if stride != 1 || inPlanes != planes*Expansion {
		downsample = &Downsample{
			Conv: NewConv2d(inPlanes, planes*Expansion, 1, stride, 0, rng),
			BN:   dsnorm.NewDomainBatchNorm2d(planes*Expansion, numDomains),
		}
	}

	stage := make([]*Bottleneck, 0, blocks)
	stage = append(stage, NewBottleneck(inPlanes, planes, stride, numDomains, downsample, rng))
	inPlanes = planes * Expansion
	for i := 1; i < blocks; i++ {
		stage = append(stage, NewBottleneck(inPlanes, planes, 1, numDomains, nil, rng))
	}
	return stage, inPlanes
}

// Forward extracts the pooled embedding for the batch. labels routes every
// interior normalization; it may carry trailing entries beyond the batch
// size (such as an epoch routing key) which are threaded through untouched.
//
// The stem applies conv → norm → maxpool with no activation between the
// norm and the pool.
func (b *Backbone) Forward(x *tensor.FeatureMap, labels []int, training bool) *tensor.Matrix {
	out := b.Conv1.Forward(x)
	out, _ = b.BN1.Forward(out, labels, training)
	out = b.MaxPool.Forward(out)

	for s := 0; s < 4; s++ {
		for _, block := range b.Stages[s] {
			out, _ = block.Forward(out, labels, training)
		}
	}

	return GlobalAvgPool(out)
}
