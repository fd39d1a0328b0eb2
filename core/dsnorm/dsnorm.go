// Package dsnorm implements batch normalization with per-domain statistics.
// Every domain id owns an independent set of affine parameters and running
// statistics; each sample in a batch is normalized with the statistics of the
// domain named by its label, never with a blended global statistic.
package dsnorm

import (
	"math"
	"sort"

	"github.com/adalundhe/reidgraph/core/tensor"
)

const (
	// DefaultEps is the variance floor added before the square root.
	DefaultEps = 1e-5

	// DefaultMomentum weights the batch statistic in the running update:
	// running = (1-momentum)*running + momentum*batch.
	DefaultMomentum = 0.1
)

// DomainStats holds the affine parameters and running statistics owned by a
// single domain.
type DomainStats struct {
	Gamma          []float64
	Beta           []float64
	RunningMean    []float64
	RunningVar     []float64
	BatchesTracked int64
}

func newDomainStats(features int) *DomainStats {
	s := &DomainStats{
		Gamma:       make([]float64, features),
		Beta:        make([]float64, features),
		RunningMean: make([]float64, features),
		RunningVar:  make([]float64, features),
	}
	tensor.FillInit(s.Gamma, 1.0)
	tensor.FillInit(s.RunningVar, 1.0)
	return s
}

func (s *DomainStats) reset() {
	tensor.FillInit(s.Gamma, 1.0)
	tensor.ZeroInit(s.Beta)
	tensor.ZeroInit(s.RunningMean)
	tensor.FillInit(s.RunningVar, 1.0)
	s.BatchesTracked = 0
}

// DomainBatchNorm normalizes per-sample feature vectors, routing each row to
// the statistics of the domain named by its label. The domain registry grows
// lazily: a label never seen before gets a freshly initialized record on
// first use.
//
// Forward calls mutate running statistics in training mode and must be
// serialized per instance by the caller.
type DomainBatchNorm struct {
	Features      int
	Eps           float64
	Momentum      float64
	BiasTrainable bool

	domains map[int]*DomainStats
}

// NewDomainBatchNorm creates a 1-D domain-routed batch norm over the given
// feature width, pre-registering domains 0..numDomains-1.
func NewDomainBatchNorm(features, numDomains int) *DomainBatchNorm {
	bn := &DomainBatchNorm{
		Features:      features,
		Eps:           DefaultEps,
		Momentum:      DefaultMomentum,
		BiasTrainable: true,
		domains:       make(map[int]*DomainStats),
	}
	for d := 0; d < numDomains; d++ {
		bn.domains[d] = newDomainStats(features)
	}
	return bn
}

// Stats returns the statistics record for domain, creating it on first use.
func (bn *DomainBatchNorm) Stats(domain int) *DomainStats {
	s, ok := bn.domains[domain]
	if !ok {
		s = newDomainStats(bn.Features)
		bn.domains[domain] = s
	}
	return s
}

// Domains returns the registered domain ids in ascending order.
func (bn *DomainBatchNorm) Domains() []int {
	ids := make([]int, 0, len(bn.domains))
	for d := range bn.domains {
		ids = append(ids, d)
	}
	sort.Ints(ids)
	return ids
}

// ResetParameters restores every registered domain to its initial state.
func (bn *DomainBatchNorm) ResetParameters() {
	for _, s := range bn.domains {
		s.reset()
	}
}

// SetBiasTrainable marks whether the Beta shift participates in parameter
// groups. It does not alter forward behavior.
func (bn *DomainBatchNorm) SetBiasTrainable(trainable bool) {
	bn.BiasTrainable = trainable
}

// Parameters returns the affine parameters of every registered domain in
// ascending domain order. Beta is excluded while the bias is frozen.
func (bn *DomainBatchNorm) Parameters() [][]float64 {
	var params [][]float64
	for _, d := range bn.Domains() {
		s := bn.domains[d]
		params = append(params, s.Gamma)
		if bn.BiasTrainable {
			params = append(params, s.Beta)
		}
	}
	return params
}

// Forward normalizes x row-by-row using each row's domain statistics and
// returns the normalized matrix together with the unmodified label slice for
// chaining. labels must have at least x.Rows entries; trailing entries (such
// as an appended epoch routing key) are carried through untouched and do not
// route any row.
//
// In training mode the batch mean/variance of each domain's rows normalizes
// that domain's group, and the domain's running statistics are blended
// toward the batch statistics. In eval mode running statistics are used.
func (bn *DomainBatchNorm) Forward(x *tensor.Matrix, labels []int, training bool) (*tensor.Matrix, []int) {
	out := tensor.NewMatrix(x.Rows, x.Cols)
	for domain, rows := range groupByLabel(labels, x.Rows) {
		stats := bn.Stats(domain)
		bn.normalizeGroup(x, out, rows, stats, training)
	}
	return out, labels
}

func (bn *DomainBatchNorm) normalizeGroup(x, out *tensor.Matrix, rows []int, stats *DomainStats, training bool) {
	features := bn.Features
	mean := stats.RunningMean
	variance := stats.RunningVar

	if training {
		n := float64(len(rows))
		batchMean := make([]float64, features)
		batchVar := make([]float64, features)
		for _, r := range rows {
			row := x.Row(r)
			for j := 0; j < features; j++ {
				batchMean[j] += row[j]
			}
		}
		for j := 0; j < features; j++ {
			batchMean[j] /= n
		}
		for _, r := range rows {
			row := x.Row(r)
			for j := 0; j < features; j++ {
				d := row[j] - batchMean[j]
				batchVar[j] += d * d
			}
		}
		for j := 0; j < features; j++ {
			batchVar[j] /= n
		}

		// Running stats track the unbiased variance estimate.
		unbiasScale := 1.0
		if len(rows) > 1 {
			unbiasScale = n / (n - 1)
		}
		m := bn.Momentum
		for j := 0; j < features; j++ {
			stats.RunningMean[j] = (1-m)*stats.RunningMean[j] + m*batchMean[j]
			stats.RunningVar[j] = (1-m)*stats.RunningVar[j] + m*batchVar[j]*unbiasScale
		}
		stats.BatchesTracked++

		mean = batchMean
		variance = batchVar
	}

	invStd := make([]float64, features)
	for j := 0; j < features; j++ {
		invStd[j] = 1.0 / math.Sqrt(variance[j]+bn.Eps)
	}
	for _, r := range rows {
		src := x.Row(r)
		dst := out.Row(r)
		for j := 0; j < features; j++ {
			dst[j] = (src[j]-mean[j])*invStd[j]*stats.Gamma[j] + stats.Beta[j]
		}
	}
}

// groupByLabel partitions row indices [0, rows) by their label, preserving
// original row order within each group.
func groupByLabel(labels []int, rows int) map[int][]int {
	groups := make(map[int][]int)
	for i := 0; i < rows; i++ {
		groups[labels[i]] = append(groups[labels[i]], i)
	}
	return groups
}
