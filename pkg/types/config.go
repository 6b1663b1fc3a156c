package types

import (
	"fmt"
	"math"
	"runtime"
)

// weightTolerance bounds the rounding error accepted when checking that a
// weight pair sums to one.
const weightTolerance = 1e-9

// TextConfig holds settings for the text featurizer.
type TextConfig struct {
	// MinDF drops terms occurring in fewer documents than this (default 5).
	MinDF int `json:"min_df" yaml:"min_df" mapstructure:"min_df"`

	// MaxDF drops terms occurring in more than this fraction of documents (default 0.8).
	MaxDF float64 `json:"max_df" yaml:"max_df" mapstructure:"max_df"`

	// Dims is the number of latent semantic dimensions (default 200).
	Dims int `json:"dims" yaml:"dims" mapstructure:"dims"`

	// VarianceTarget is the fraction of TF-IDF variance the reduction is
	// expected to retain (default 0.8). Falling short is reported as a warning.
	VarianceTarget float64 `json:"variance_target" yaml:"variance_target" mapstructure:"variance_target"`

	// ExtraStopWords extends the built-in stop list.
	ExtraStopWords []string `json:"extra_stop_words,omitempty" yaml:"extra_stop_words,omitempty" mapstructure:"extra_stop_words"`
}

// CouplingConfig holds settings for the bibliographic coupling network.
type CouplingConfig struct {
	// Dims is the width of the low-rank coupling embedding used for fusion (default 50).
	Dims int `json:"dims" yaml:"dims" mapstructure:"dims"`
}

// FusionConfig holds the text/citation weighting.
type FusionConfig struct {
	// TextWeight is w_t (default 0.6). The citation weight is 1 - TextWeight.
	TextWeight float64 `json:"text_weight" yaml:"text_weight" mapstructure:"text_weight"`

	// SearchWeights enables the grid search over WeightCandidates.
	SearchWeights bool `json:"search_weights" yaml:"search_weights" mapstructure:"search_weights"`

	// WeightCandidates lists the text weights tried when SearchWeights is set.
	WeightCandidates []float64 `json:"weight_candidates" yaml:"weight_candidates" mapstructure:"weight_candidates"`
}

// ClusterConfig holds settings for the three-level hierarchy.
type ClusterConfig struct {
	// K1 lists the candidate counts of major streams (default 6, 8, 10, 12).
	K1 []int `json:"k1" yaml:"k1" mapstructure:"k1"`

	// K2 lists the candidate subtopic counts per stream (default 4..8).
	K2 []int `json:"k2" yaml:"k2" mapstructure:"k2"`

	// K3 lists the candidate micro-topic counts per subtopic (default 2, 3, 4).
	K3 []int `json:"k3" yaml:"k3" mapstructure:"k3"`

	// MinMembersL3 is the smallest subtopic that is split further (default 10).
	MinMembersL3 int `json:"min_members_l3" yaml:"min_members_l3" mapstructure:"min_members_l3"`

	// LabelTerms is the number of keywords attached to each topic (default 8).
	LabelTerms int `json:"label_terms" yaml:"label_terms" mapstructure:"label_terms"`

	// ScoreTolerance is the score difference under which two candidates are
	// treated as indistinguishable; the smaller parameter then wins (default 0.005).
	ScoreTolerance float64 `json:"score_tolerance" yaml:"score_tolerance" mapstructure:"score_tolerance"`

	// SilhouetteSample limits silhouette scoring to a seeded sample of this
	// many documents. Zero scores every document.
	SilhouetteSample int `json:"silhouette_sample" yaml:"silhouette_sample" mapstructure:"silhouette_sample"`

	// MaxIter caps NMF iterations (default 500).
	MaxIter int `json:"max_iter" yaml:"max_iter" mapstructure:"max_iter"`

	// Tolerance is the NMF convergence threshold on the relative change in
	// reconstruction error (default 1e-4).
	Tolerance float64 `json:"tolerance" yaml:"tolerance" mapstructure:"tolerance"`

	// Workers bounds the number of nodes subdivided concurrently (default GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// OutputConfig selects where and how results are written.
type OutputConfig struct {
	// Dir is the output directory for tables and summaries.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// SQLite also writes the tables to Dir/taxonomy.db.
	SQLite bool `json:"sqlite" yaml:"sqlite" mapstructure:"sqlite"`

	// JSON also writes each table as JSON next to its CSV.
	JSON bool `json:"json" yaml:"json" mapstructure:"json"`
}

// Config groups every setting of a taxonomy run. It is passed by value into
// each component; nothing reads configuration from package state.
type Config struct {
	// InputPath is the corpus file (.jsonl, .yaml or .yml).
	InputPath string `json:"input" yaml:"input" mapstructure:"input"`

	// Seed drives every stochastic initialisation in the run.
	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	Text     TextConfig     `json:"text" yaml:"text" mapstructure:"text"`
	Coupling CouplingConfig `json:"coupling" yaml:"coupling" mapstructure:"coupling"`
	Fusion   FusionConfig   `json:"fusion" yaml:"fusion" mapstructure:"fusion"`
	Cluster  ClusterConfig  `json:"cluster" yaml:"cluster" mapstructure:"cluster"`
	Output   OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
}

// DefaultConfig returns the configuration used when no option is set.
func DefaultConfig() Config {
	return Config{
		Seed: 42,
		Text: TextConfig{
			MinDF:          5,
			MaxDF:          0.8,
			Dims:           200,
			VarianceTarget: 0.8,
		},
		Coupling: CouplingConfig{Dims: 50},
		Fusion: FusionConfig{
			TextWeight:       0.6,
			WeightCandidates: []float64{0.4, 0.5, 0.6, 0.7, 0.8},
		},
		Cluster: ClusterConfig{
			K1:             []int{6, 8, 10, 12},
			K2:             []int{4, 5, 6, 7, 8},
			K3:             []int{2, 3, 4},
			MinMembersL3:   10,
			LabelTerms:     8,
			ScoreTolerance: 0.005,
			MaxIter:        500,
			Tolerance:      1e-4,
			Workers:        runtime.GOMAXPROCS(0),
		},
		Output: OutputConfig{
			Dir:    "output",
			SQLite: true,
		},
	}
}

// Weights returns the text/citation weight pair configured for the run.
func (c Config) Weights() Weights {
	return Weights{Text: c.Fusion.TextWeight, Citation: 1 - c.Fusion.TextWeight}
}

// Validate checks every configuration constraint before any computation
// runs. The returned error is a *ConfigError.
func (c Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if c.Fusion.SearchWeights {
		if len(c.Fusion.WeightCandidates) == 0 {
			return configErr("fusion.weight_candidates", "must not be empty when weight search is enabled", ErrInvalidConfig)
		}
		for _, wt := range c.Fusion.WeightCandidates {
			if err := (Weights{Text: wt, Citation: 1 - wt}).Validate(); err != nil {
				return err
			}
		}
	}

	for _, set := range []struct {
		field string
		ks    []int
		min   int
	}{
		{"cluster.k1", c.Cluster.K1, 2},
		{"cluster.k2", c.Cluster.K2, 2},
		{"cluster.k3", c.Cluster.K3, 2},
	} {
		if len(set.ks) == 0 {
			return configErr(set.field, "candidate set must not be empty", ErrInvalidConfig)
		}
		for _, k := range set.ks {
			if k < set.min {
				return configErr(set.field, fmt.Sprintf("candidate %d is below %d", k, set.min), ErrInvalidConfig)
			}
		}
	}

	switch {
	case c.Text.MinDF < 1:
		return configErr("text.min_df", "must be at least 1", ErrInvalidConfig)
	case c.Text.MaxDF <= 0 || c.Text.MaxDF > 1:
		return configErr("text.max_df", "must lie in (0, 1]", ErrInvalidConfig)
	case c.Text.Dims < 1:
		return configErr("text.dims", "must be at least 1", ErrInvalidConfig)
	case c.Text.VarianceTarget < 0 || c.Text.VarianceTarget > 1:
		return configErr("text.variance_target", "must lie in [0, 1]", ErrInvalidConfig)
	case c.Coupling.Dims < 1:
		return configErr("coupling.dims", "must be at least 1", ErrInvalidConfig)
	case c.Cluster.MinMembersL3 < 1:
		return configErr("cluster.min_members_l3", "must be at least 1", ErrInvalidConfig)
	case c.Cluster.LabelTerms < 1:
		return configErr("cluster.label_terms", "must be at least 1", ErrInvalidConfig)
	case c.Cluster.ScoreTolerance < 0:
		return configErr("cluster.score_tolerance", "must not be negative", ErrInvalidConfig)
	case c.Cluster.SilhouetteSample < 0:
		return configErr("cluster.silhouette_sample", "must not be negative", ErrInvalidConfig)
	case c.Cluster.MaxIter < 1:
		return configErr("cluster.max_iter", "must be at least 1", ErrInvalidConfig)
	case c.Cluster.Tolerance <= 0:
		return configErr("cluster.tolerance", "must be positive", ErrInvalidConfig)
	}
	return nil
}

// Weights is the text/citation weight pair used by the fuser.
type Weights struct {
	Text     float64 `json:"text" yaml:"text"`
	Citation float64 `json:"citation" yaml:"citation"`
}

// Validate reports ErrInvalidWeight unless both weights lie in [0,1] and
// sum to one.
func (w Weights) Validate() error {
	if math.IsNaN(w.Text) || math.IsNaN(w.Citation) {
		return configErr("fusion.text_weight", "weights must be numbers", ErrInvalidWeight)
	}
	if w.Text < 0 || w.Text > 1 || w.Citation < 0 || w.Citation > 1 {
		return configErr("fusion.text_weight",
			fmt.Sprintf("weights (%g, %g) must each lie in [0, 1]", w.Text, w.Citation), ErrInvalidWeight)
	}
	if math.Abs(w.Text+w.Citation-1) > weightTolerance {
		return configErr("fusion.text_weight",
			fmt.Sprintf("weights (%g, %g) sum to %g, want 1", w.Text, w.Citation, w.Text+w.Citation), ErrInvalidWeight)
	}
	return nil
}
