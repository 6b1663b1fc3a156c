package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// configureViper reads TAXONOMY_ENGINE_* variables, with dots in keys
// replaced by underscores, on top of the defaults.
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("TAXONOMY_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
}

// setDefaults registers every configuration key with its default so that
// environment variables and config files can override any of them.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("input", d.InputPath)
	v.SetDefault("seed", d.Seed)

	v.SetDefault("text.min_df", d.Text.MinDF)
	v.SetDefault("text.max_df", d.Text.MaxDF)
	v.SetDefault("text.dims", d.Text.Dims)
	v.SetDefault("text.variance_target", d.Text.VarianceTarget)
	v.SetDefault("text.extra_stop_words", d.Text.ExtraStopWords)

	v.SetDefault("coupling.dims", d.Coupling.Dims)

	v.SetDefault("fusion.text_weight", d.Fusion.TextWeight)
	v.SetDefault("fusion.search_weights", d.Fusion.SearchWeights)
	v.SetDefault("fusion.weight_candidates", d.Fusion.WeightCandidates)

	v.SetDefault("cluster.k1", d.Cluster.K1)
	v.SetDefault("cluster.k2", d.Cluster.K2)
	v.SetDefault("cluster.k3", d.Cluster.K3)
	v.SetDefault("cluster.min_members_l3", d.Cluster.MinMembersL3)
	v.SetDefault("cluster.label_terms", d.Cluster.LabelTerms)
	v.SetDefault("cluster.score_tolerance", d.Cluster.ScoreTolerance)
	v.SetDefault("cluster.silhouette_sample", d.Cluster.SilhouetteSample)
	v.SetDefault("cluster.max_iter", d.Cluster.MaxIter)
	v.SetDefault("cluster.tolerance", d.Cluster.Tolerance)
	v.SetDefault("cluster.workers", d.Cluster.Workers)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.sqlite", d.Output.SQLite)
	v.SetDefault("output.json", d.Output.JSON)
}

// flagKeys maps scalar flags to their configuration keys.
var flagKeys = map[string]string{
	"input":             "input",
	"output":            "output.dir",
	"seed":              "seed",
	"min-df":            "text.min_df",
	"max-df":            "text.max_df",
	"dims":              "text.dims",
	"variance-target":   "text.variance_target",
	"coupling-dims":     "coupling.dims",
	"text-weight":       "fusion.text_weight",
	"search-weights":    "fusion.search_weights",
	"min-members-l3":    "cluster.min_members_l3",
	"label-terms":       "cluster.label_terms",
	"score-tolerance":   "cluster.score_tolerance",
	"silhouette-sample": "cluster.silhouette_sample",
	"max-iter":          "cluster.max_iter",
	"tolerance":         "cluster.tolerance",
	"workers":           "cluster.workers",
	"sqlite":            "output.sqlite",
	"json":              "output.json",
}

// addRunFlags declares the pipeline flags on fs. Flag defaults are zero;
// the real defaults live in types.DefaultConfig and only changed flags
// override the file and environment.
func addRunFlags(fs *pflag.FlagSet) {
	fs.StringP("input", "i", "", "corpus file (.jsonl or .yaml)")
	fs.StringP("output", "o", "", "output directory (default output)")
	fs.Uint64("seed", 0, "random seed (default 42)")
	fs.Int("min-df", 0, "minimum document frequency of a term (default 5)")
	fs.Float64("max-df", 0, "maximum document fraction of a term (default 0.8)")
	fs.Int("dims", 0, "latent semantic dimensions (default 200)")
	fs.Float64("variance-target", 0, "expected retained TF-IDF variance (default 0.8)")
	fs.Int("coupling-dims", 0, "coupling embedding width (default 50)")
	fs.Float64("text-weight", 0, "text weight; citation weight is 1 minus this (default 0.6)")
	fs.Bool("search-weights", false, "grid-search the text weight")
	fs.Float64Slice("weight-candidates", nil, "text weights tried by the search (default 0.4,0.5,0.6,0.7,0.8)")
	fs.IntSlice("k1", nil, "candidate stream counts (default 6,8,10,12)")
	fs.IntSlice("k2", nil, "candidate subtopic counts (default 4,5,6,7,8)")
	fs.IntSlice("k3", nil, "candidate micro-topic counts (default 2,3,4)")
	fs.Int("min-members-l3", 0, "smallest subtopic split into micro-topics (default 10)")
	fs.Int("label-terms", 0, "keywords per topic (default 8)")
	fs.Float64("score-tolerance", 0, "score difference treated as a tie (default 0.005)")
	fs.Int("silhouette-sample", 0, "documents sampled for silhouette scoring (default all)")
	fs.Int("max-iter", 0, "NMF iteration cap (default 500)")
	fs.Float64("tolerance", 0, "NMF convergence tolerance (default 1e-4)")
	fs.Int("workers", 0, "concurrent subdivisions (default GOMAXPROCS)")
	fs.Bool("sqlite", false, "write taxonomy.db next to the tables (default true)")
	fs.Bool("json", false, "write JSON copies of the tables")
}

// loadConfig merges defaults, config file, environment and changed flags.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	fs := cmd.Flags()
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return types.Config{}, fmt.Errorf("binding --%s: %w", name, err)
		}
	}

	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, configError(fmt.Errorf("decoding configuration: %w", err))
	}

	// Slice flags replace the configured list as a whole.
	if fs.Changed("k1") {
		cfg.Cluster.K1, _ = fs.GetIntSlice("k1")
	}
	if fs.Changed("k2") {
		cfg.Cluster.K2, _ = fs.GetIntSlice("k2")
	}
	if fs.Changed("k3") {
		cfg.Cluster.K3, _ = fs.GetIntSlice("k3")
	}
	if fs.Changed("weight-candidates") {
		cfg.Fusion.WeightCandidates, _ = fs.GetFloat64Slice("weight-candidates")
	}

	if cfg.Cluster.Workers < 1 {
		cfg.Cluster.Workers = types.DefaultConfig().Cluster.Workers
	}
	return cfg, nil
}
