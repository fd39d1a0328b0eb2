package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the network. The zero value is not usable; NumDomains
// must be at least 1.
type Config struct {
	// NumFeatures is the embedding width of the plain branch. Zero keeps
	// the backbone output width and skips the embedding projection.
	NumFeatures int `yaml:"num_features"`

	// NumClasses is the classifier width. Zero disables both classifiers.
	NumClasses int `yaml:"num_classes"`

	// NumDomains is the number of pre-registered normalization domains.
	NumDomains int `yaml:"num_domains"`

	// Dropout is the drop probability applied to the plain-branch
	// embedding during training. Zero disables dropout.
	Dropout float64 `yaml:"dropout"`

	// NormalizeEmbedding L2-normalizes the plain-branch embedding instead
	// of applying ReLU after the embedding projection.
	NormalizeEmbedding bool `yaml:"normalize_embedding"`

	// CutAtPooling returns the pooled backbone embedding directly,
	// skipping the graph refinement and both heads.
	CutAtPooling bool `yaml:"cut_at_pooling"`

	// Seed drives all parameter initialization and dropout masks.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the two-domain configuration used by the
// source/target adaptation setup.
func DefaultConfig() Config {
	return Config{
		NumDomains: 2,
		Seed:       1,
	}
}

// LoadConfig reads a YAML config file, applying defaults for absent fields.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the network cannot be built from.
func (c Config) Validate() error {
	if c.NumDomains < 1 {
		return fmt.Errorf("num_domains must be >= 1, got %d", c.NumDomains)
	}
	if c.NumFeatures < 0 {
		return fmt.Errorf("num_features must be >= 0, got %d", c.NumFeatures)
	}
	if c.NumClasses < 0 {
		return fmt.Errorf("num_classes must be >= 0, got %d", c.NumClasses)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %g", c.Dropout)
	}
	return nil
}
