package dsnorm

import (
	"math"
	"sort"

	"github.com/adalundhe/reidgraph/core/tensor"
)

// DomainBatchNorm2d is the spatial analogue of DomainBatchNorm: statistics
// are per-channel, accumulated over every pixel of every sample belonging to
// the routed domain.
type DomainBatchNorm2d struct {
	Channels      int
	Eps           float64
	Momentum      float64
	BiasTrainable bool

	domains map[int]*DomainStats
}

// NewDomainBatchNorm2d creates a 2-D domain-routed batch norm over the given
// channel count, pre-registering domains 0..numDomains-1.
func NewDomainBatchNorm2d(channels, numDomains int) *DomainBatchNorm2d {
	bn := &DomainBatchNorm2d{
		Channels:      channels,
		Eps:           DefaultEps,
		Momentum:      DefaultMomentum,
		BiasTrainable: true,
		domains:       make(map[int]*DomainStats),
	}
	for d := 0; d < numDomains; d++ {
		bn.domains[d] = newDomainStats(channels)
	}
	return bn
}

// Stats returns the statistics record for domain, creating it on first use.
func (bn *DomainBatchNorm2d) Stats(domain int) *DomainStats {
	s, ok := bn.domains[domain]
	if !ok {
		s = newDomainStats(bn.Channels)
		bn.domains[domain] = s
	}
	return s
}

// ResetParameters restores every registered domain to its initial state.
func (bn *DomainBatchNorm2d) ResetParameters() {
	for _, s := range bn.domains {
		s.reset()
	}
}

// Parameters returns the affine parameters of every registered domain in
// ascending domain order. Beta is excluded while the bias is frozen.
func (bn *DomainBatchNorm2d) Parameters() [][]float64 {
	ids := make([]int, 0, len(bn.domains))
	for d := range bn.domains {
		ids = append(ids, d)
	}
	sort.Ints(ids)

	var params [][]float64
	for _, d := range ids {
		s := bn.domains[d]
		params = append(params, s.Gamma)
		if bn.BiasTrainable {
			params = append(params, s.Beta)
		}
	}
	return params
}

// Forward normalizes the feature map per channel with each sample routed to
// its domain's statistics, returning the normalized map and the unmodified
// labels. labels must have at least x.N entries; trailing entries are
// ignored for routing and carried through.
func (bn *DomainBatchNorm2d) Forward(x *tensor.FeatureMap, labels []int, training bool) (*tensor.FeatureMap, []int) {
	out := tensor.NewFeatureMap(x.N, x.C, x.H, x.W)
	for domain, samples := range groupByLabel(labels, x.N) {
		stats := bn.Stats(domain)
		bn.normalizeGroup(x, out, samples, stats, training)
	}
	return out, labels
}

func (bn *DomainBatchNorm2d) normalizeGroup(x, out *tensor.FeatureMap, samples []int, stats *DomainStats, training bool) {
	channels := bn.Channels
	plane := x.H * x.W
	mean := stats.RunningMean
	variance := stats.RunningVar

	if training {
		count := float64(len(samples) * plane)
		batchMean := make([]float64, channels)
		batchVar := make([]float64, channels)
		for _, n := range samples {
			for c := 0; c < channels; c++ {
				var s float64
				for _, v := range x.Channel(n, c) {
					s += v
				}
				batchMean[c] += s
			}
		}
		for c := 0; c < channels; c++ {
			batchMean[c] /= count
		}
		for _, n := range samples {
			for c := 0; c < channels; c++ {
				m := batchMean[c]
				var s float64
				for _, v := range x.Channel(n, c) {
					d := v - m
					s += d * d
				}
				batchVar[c] += s
			}
		}
		for c := 0; c < channels; c++ {
			batchVar[c] /= count
		}

		unbiasScale := 1.0
		if count > 1 {
			unbiasScale = count / (count - 1)
		}
		m := bn.Momentum
		for c := 0; c < channels; c++ {
			stats.RunningMean[c] = (1-m)*stats.RunningMean[c] + m*batchMean[c]
			stats.RunningVar[c] = (1-m)*stats.RunningVar[c] + m*batchVar[c]*unbiasScale
		}
		stats.BatchesTracked++

		mean = batchMean
		variance = batchVar
	}

	for c := 0; c < channels; c++ {
		invStd := 1.0 / math.Sqrt(variance[c]+bn.Eps)
		gamma := stats.Gamma[c]
		beta := stats.Beta[c]
		for _, n := range samples {
			src := x.Channel(n, c)
			dst := out.Channel(n, c)
			for i, v := range src {
				dst[i] = (v-mean[c])*invStd*gamma + beta
			}
		}
	}
}
