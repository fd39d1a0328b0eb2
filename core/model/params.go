package model

import "fmt"

// ParamGroup names one logical parameter bundle. GCNWeight marks the graph
// convolution parameters so optimizers can treat them as their own group;
// the classification is fixed at construction rather than tagged onto the
// tensors at runtime.
type ParamGroup struct {
	Name      string
	Params    [][]float64
	GCNWeight bool
}

// ParamGroups returns the registry built at construction. The slices alias
// live parameter storage.
func (n *Network) ParamGroups() []ParamGroup {
	return n.groups
}

func (n *Network) buildParamGroups() []ParamGroup {
	groups := []ParamGroup{
		{
			Name: "gcn.gc1",
			Params: [][]float64{
				n.GCN.GC1.Weight.Data,
				n.GCN.GC1.Bias,
			},
			GCNWeight: true,
		},
		{
			Name: "gcn.gc2",
			Params: [][]float64{
				n.GCN.GC2.Weight.Data,
				n.GCN.GC2.Bias,
			},
			GCNWeight: true,
		},
		{
			Name:   "adj_center.attention",
			Params: [][]float64{n.AdjCenter.AttWeight},
		},
		{
			Name:   "backbone.conv1",
			Params: [][]float64{n.Backbone.Conv1.Weight.Data},
		},
	}

	groups = append(groups, ParamGroup{
		Name:   "backbone.bn1",
		Params: n.Backbone.BN1.Parameters(),
	})

	for s, stage := range n.Backbone.Stages {
		for i, block := range stage {
			params := [][]float64{
				block.Conv1.Weight.Data,
				block.Conv2.Weight.Data,
				block.Conv3.Weight.Data,
			}
			params = append(params, block.BN1.Parameters()...)
			params = append(params, block.BN2.Parameters()...)
			params = append(params, block.BN3.Parameters()...)
			if block.Downsample != nil {
				params = append(params, block.Downsample.Conv.Weight.Data)
				params = append(params, block.Downsample.BN.Parameters()...)
			}
			groups = append(groups, ParamGroup{
				Name:   stageBlockName(s, i),
				Params: params,
			})
		}
	}

	if n.FeatBN != nil {
		groups = append(groups, ParamGroup{
			Name:   "feat_bn",
			Params: n.FeatBN.Parameters(),
		})
	}
	groups = append(groups, ParamGroup{
		Name:   "gcn_bn",
		Params: n.GCNBN.Parameters(),
	})

	if n.Feat != nil {
		groups = append(groups, ParamGroup{
			Name:   "feat",
			Params: [][]float64{n.Feat.Weight.Data, n.Feat.Bias},
		})
	}
	if n.Classifier != nil {
		groups = append(groups, ParamGroup{
			Name:   "classifier",
			Params: [][]float64{n.Classifier.Weight.Data},
		})
	}
	if n.GCNClassifier != nil {
		groups = append(groups, ParamGroup{
			Name:   "gcn_classifier",
			Params: [][]float64{n.GCNClassifier.Weight.Data},
		})
	}

	return groups
}

func stageBlockName(stage, block int) string {
	return fmt.Sprintf("backbone.layer%d.%d", stage+1, block)
}
