// Package model assembles the full re-identification network: domain-routed
// backbone, graph-convolutional refinement over sample and center nodes,
// residual fusion, and the two classification heads.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/adalundhe/reidgraph/core/backbone"
	"github.com/adalundhe/reidgraph/core/dsnorm"
	"github.com/adalundhe/reidgraph/core/gcn"
	"github.com/adalundhe/reidgraph/core/tensor"
)

// ErrLabelCount reports a label slice shorter than the batch.
var ErrLabelCount = errors.New("model: domain label count is smaller than batch size")

// ForwardOptions selects the forward-pass mode.
type ForwardOptions struct {
	// Training toggles batch statistics, attention centers, and dropout.
	Training bool

	// Epoch is appended to the domain labels as an extra routing key for
	// the backbone and graph normalization stages. It is required in
	// training mode; the head normalizations always use the original
	// labels.
	Epoch int

	// FeatureWithBN returns the normalized plain embedding in place of the
	// raw pooled embedding (training mode only).
	FeatureWithBN bool
}

// Output carries the forward-pass results. Which fields are set depends on
// the mode:
//
//   - eval: Embedding only, L2-normalized fused embedding.
//   - training, no classifier: Embedding (raw pooled) and BNEmbedding.
//   - training, FeatureWithBN: BNEmbedding and Logits.
//   - training otherwise: Embedding, Logits, and GCNLogits.
//   - CutAtPooling: Embedding (raw pooled) only, any mode.
type Output struct {
	Embedding   *tensor.Matrix
	BNEmbedding *tensor.Matrix
	Logits      *tensor.Matrix
	GCNLogits   *tensor.Matrix
}

// Network is the complete model. Forward calls mutate running statistics in
// training mode; callers must serialize Forward invocations per instance.
type Network struct {
	cfg    Config
	logger *slog.Logger
	rng    *rand.Rand

	Backbone *backbone.Backbone

	// Plain branch.
	Feat       *Linear // nil unless NumFeatures > 0
	FeatBN     *dsnorm.DomainBatchNorm
	Classifier *Linear // nil unless NumClasses > 0

	// Graph branch.
	GCN           *gcn.TwoLayerGCN
	AdjFirst      *gcn.FirstLayerAdjacency
	AdjCenter     *gcn.AttentionCenterAdjacency
	GCNBN         *dsnorm.DomainBatchNorm
	GCNClassifier *Linear // nil unless NumClasses > 0

	numFeatures  int
	hasEmbedding bool
	groups       []ParamGroup
}

// New builds a network from cfg. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{
		cfg:    cfg,
		logger: logger,
		rng:    rng,
	}

	n.Backbone = backbone.New(cfg.NumDomains, rng)
	outPlanes := n.Backbone.OutFeatures

	n.hasEmbedding = cfg.NumFeatures > 0
	n.numFeatures = cfg.NumFeatures
	if !n.hasEmbedding {
		n.numFeatures = outPlanes
	}

	if !cfg.CutAtPooling {
		if n.hasEmbedding {
			n.Feat = NewLinear(outPlanes, n.numFeatures, true, 0.01, rng)
		}
		n.FeatBN = dsnorm.NewDomainBatchNorm(n.numFeatures, cfg.NumDomains)
		n.FeatBN.ResetParameters()
		n.FeatBN.SetBiasTrainable(false)

		if cfg.NumClasses > 0 {
			n.Classifier = NewLinear(n.numFeatures, cfg.NumClasses, false, 0.001, rng)
		}
	}

	// The graph branch operates on the raw pooled embedding, so its width
	// is the backbone output width regardless of the plain-branch
	// projection.
	n.GCN = gcn.NewTwoLayerGCN(outPlanes, outPlanes, outPlanes, rng)
	n.AdjFirst = gcn.NewFirstLayerAdjacency()
	n.AdjCenter = gcn.NewAttentionCenterAdjacency(outPlanes, rng)
	n.GCNBN = dsnorm.NewDomainBatchNorm(outPlanes, cfg.NumDomains)
	n.GCNBN.ResetParameters()
	n.GCNBN.SetBiasTrainable(false)
	if cfg.NumClasses > 0 {
		n.GCNClassifier = NewLinear(outPlanes, cfg.NumClasses, false, 0.001, rng)
	}

	n.groups = n.buildParamGroups()

	logger.Info("network constructed",
		"num_features", n.numFeatures,
		"num_classes", cfg.NumClasses,
		"num_domains", cfg.NumDomains,
		"param_groups", len(n.groups),
	)
	return n, nil
}

// NumFeatures returns the plain-branch embedding width.
func (n *Network) NumFeatures() int {
	return n.numFeatures
}

// Forward runs one pass over the batch. labels carries one domain id per
// sample and routes every domain-specific normalization.
func (n *Network) Forward(ctx context.Context, batch *tensor.FeatureMap, labels []int, opts ForwardOptions) (*Output, error) {
	if len(labels) < batch.N {
		return nil, fmt.Errorf("%w: %d labels for %d samples", ErrLabelCount, len(labels), batch.N)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The backbone and the graph normalization stages see an augmented
	// label vector with the epoch index appended as an extra routing key;
	// the head normalizations use the original labels.
	augmented := make([]int, 0, batch.N+1)
	augmented = append(augmented, labels[:batch.N]...)
	augmented = append(augmented, opts.Epoch)

	x := n.Backbone.Forward(batch, augmented, opts.Training)

	if n.cfg.CutAtPooling {
		return &Output{Embedding: x}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	adj1 := n.AdjFirst.Forward(x.Rows)
	xNew, adj2 := n.AdjCenter.Forward(x, opts.Training)

	gcnFeat := n.GCN.Forward(xNew, adj1, adj2)

	// Residual fusion: the center rows are discarded and the sample rows
	// are added back onto the pooled embedding.
	xGCN := x.Clone()
	xGCN.AddInPlace(gcnFeat.SliceRows(0, x.Rows))
	xGCNBN, _ := n.GCNBN.Forward(xGCN, labels, opts.Training)

	var gcnLogits *tensor.Matrix
	if n.GCNClassifier != nil {
		gcnLogits = n.GCNClassifier.Forward(xGCNBN)
	}

	if !opts.Training {
		return &Output{Embedding: tensor.L2NormalizeRows(xGCNBN)}, nil
	}

	bnX := x
	if n.hasEmbedding {
		bnX = n.Feat.Forward(x)
	}
	bnX, _ = n.FeatBN.Forward(bnX, labels, true)

	if n.cfg.NormalizeEmbedding {
		bnX = tensor.L2NormalizeRows(bnX)
	} else if n.hasEmbedding {
		bnX.ReLUInPlace()
	}

	if n.cfg.Dropout > 0 {
		n.applyDropout(bnX)
	}

	if n.Classifier == nil {
		return &Output{Embedding: x, BNEmbedding: bnX}, nil
	}
	logits := n.Classifier.Forward(bnX)

	if opts.FeatureWithBN {
		return &Output{BNEmbedding: bnX, Logits: logits}, nil
	}
	return &Output{Embedding: x, Logits: logits, GCNLogits: gcnLogits}, nil
}

// applyDropout performs inverted dropout in place.
func (n *Network) applyDropout(x *tensor.Matrix) {
	p := n.cfg.Dropout
	scale := 1.0 / (1.0 - p)
	for i := range x.Data {
		if n.rng.Float64() < p {
			x.Data[i] = 0
		} else {
			x.Data[i] *= scale
		}
	}
}
