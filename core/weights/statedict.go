// Package weights implements the checkpoint collaborators: a flat
// name→tensor state dictionary with the key-rewriting transforms needed to
// adapt single-domain pretrained weights to the per-domain normalization
// layout, and to transplant adapted statistics between domain slots.
package weights

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tensor is a shaped flat value in a state dictionary.
type Tensor struct {
	Shape []int     `yaml:"shape"`
	Data  []float64 `yaml:"data"`
}

// Clone deep-copies the tensor.
func (t Tensor) Clone() Tensor {
	out := Tensor{
		Shape: make([]int, len(t.Shape)),
		Data:  make([]float64, len(t.Data)),
	}
	copy(out.Shape, t.Shape)
	copy(out.Data, t.Data)
	return out
}

// StateDict is a flat mapping from parameter name to tensor, as produced by
// a pretrained-weight archive.
type StateDict map[string]Tensor

// Clone deep-copies the dictionary.
func (sd StateDict) Clone() StateDict {
	out := make(StateDict, len(sd))
	for k, v := range sd {
		out[k] = v.Clone()
	}
	return out
}

// Load reads a YAML-serialized state dictionary.
func Load(path string) (StateDict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state dict: %w", err)
	}
	var sd StateDict
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("parse state dict: %w", err)
	}
	return sd, nil
}

// Save writes the dictionary as YAML.
func Save(path string, sd StateDict) error {
	data, err := yaml.Marshal(sd)
	if err != nil {
		return fmt.Errorf("encode state dict: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state dict: %w", err)
	}
	return nil
}
