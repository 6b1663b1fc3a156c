// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the taxonomy stages in order: corpus loading, text
// features and the coupling network (concurrently), weight selection and
// fusion, the level-1 partition, level-2/3 subdivision and the output
// tables. Fatal errors carry the failing stage; everything else is collected
// as warnings in the run summary.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/internal/cluster"
	"github.com/pdiddy/taxonomy-engine/internal/corpus"
	"github.com/pdiddy/taxonomy-engine/internal/coupling"
	"github.com/pdiddy/taxonomy-engine/internal/fusion"
	"github.com/pdiddy/taxonomy-engine/internal/textfeat"
	"github.com/pdiddy/taxonomy-engine/internal/validate"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// runNamespace scopes the name-based run ids.
var runNamespace = uuid.MustParse("6f1c1b0e-8c53-4c7e-9a55-2d3f0b7e4a61")

// Result is everything a run produces.
type Result struct {
	Corpus   *corpus.Corpus
	Features *textfeat.Features
	Network  *coupling.Network

	// Streams are the level-1 nodes; the tree hangs below them.
	Streams []*types.ClusterNode

	Assignments []types.Assignment
	Documents   []types.DocumentRow

	// Topics holds the topic table of each level, indexed by level-1.
	Topics [types.MaxLevel][]types.TopicRow

	NetworkSummary types.NetworkSummary
	Summary        types.RunSummary
}

// Runner executes runs for one configuration.
type Runner struct {
	cfg types.Config
	log *zap.Logger
	out io.Writer
}

// New returns a runner. Progress lines go to out; a nil logger discards
// structured output.
func New(cfg types.Config, log *zap.Logger, out io.Writer) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, log: log, out: out}
}

// Run validates the configuration, loads cfg.InputPath and runs every stage.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, types.NewStageError(types.StageConfig, "valid configuration", err)
	}
	start := time.Now()
	c, err := corpus.Load(r.cfg.InputPath)
	if err != nil {
		return nil, types.NewStageError(types.StageCorpus, "readable corpus", err)
	}
	loadTime := time.Since(start)
	fmt.Fprintf(r.out, "loaded %d documents from %s (%d excluded)\n", c.Len(), r.cfg.InputPath, c.Excluded)
	res, err := r.RunCorpus(ctx, c)
	if err != nil {
		return nil, err
	}
	res.Summary.StageTimings[types.StageCorpus] = loadTime
	return res, nil
}

// RunCorpus runs every stage after loading on an already built corpus.
func (r *Runner) RunCorpus(ctx context.Context, c *corpus.Corpus) (*Result, error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, types.NewStageError(types.StageConfig, "valid configuration", err)
	}
	if c.Len() == 0 {
		return nil, types.NewStageError(types.StageCorpus, "at least one document", types.ErrEmptyCorpus)
	}

	res := &Result{Corpus: c}
	timings := make(map[string]time.Duration)
	var warnings []types.Warning

	// Text features and the coupling network are independent.
	var (
		embed                  *mat.Dense
		textTime, couplingTime time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		f, err := textfeat.New(cfg.Text, cfg.Seed, r.log).Fit(c.Documents)
		if err != nil {
			return err
		}
		res.Features = f
		textTime = time.Since(start)
		return gctx.Err()
	})
	g.Go(func() error {
		start := time.Now()
		net, err := coupling.Build(c.Documents, r.log)
		if err != nil {
			return err
		}
		embed, err = net.Embed(cfg.Coupling.Dims, cfg.Seed)
		if err != nil {
			return err
		}
		res.Network = net
		res.NetworkSummary = net.Summarize()
		couplingTime = time.Since(start)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timings[types.StageText] = textTime
	timings[types.StageCoupling] = couplingTime

	fmt.Fprintf(r.out, "text: %d terms, %d dimensions, %.1f%% variance retained\n",
		res.Features.Vocab.Len(), res.Features.Dims(), 100*res.Features.VarianceRetained)
	fmt.Fprintf(r.out, "coupling: %d edges, coverage %.1f%%, %d isolated\n",
		res.NetworkSummary.Edges, 100*res.NetworkSummary.Coverage, res.NetworkSummary.Isolated)
	if res.Features.VarianceRetained < cfg.Text.VarianceTarget {
		warnings = append(warnings, types.Warning{Stage: types.StageText, Message: fmt.Sprintf(
			"%d dimensions retain %.3f of TF-IDF variance, below the %.3f target",
			res.Features.Dims(), res.Features.VarianceRetained, cfg.Text.VarianceTarget)})
	}

	start := time.Now()
	sil := validate.Silhouette{Workers: cfg.Cluster.Workers, Sample: cfg.Cluster.SilhouetteSample, Seed: cfg.Seed}
	choice, err := r.chooseWeights(res.Features.Vectors, embed, sil)
	if err != nil {
		return nil, err
	}
	timings[types.StageFusion] = time.Since(start)
	sel := choice.selection
	for _, k := range sel.Skipped {
		warnings = append(warnings, types.Warning{Stage: types.StageL1,
			Message: fmt.Sprintf("k1=%d skipped: corpus has %d documents", k, c.Len())})
	}
	fmt.Fprintf(r.out, "streams: k1=%d silhouette %.3f (w_t=%.2f, w_c=%.2f)\n",
		sel.K, sel.Silhouette, choice.weights.Text, choice.weights.Citation)

	// Per-topic silhouettes need every pairwise distance, which sampling
	// is meant to avoid.
	start = time.Now()
	var perDoc []float64
	if sil.Sample == 0 {
		perDoc, err = sil.Samples(choice.fused, sel.Labels)
		if err != nil {
			return nil, types.NewStageError(types.StageValidate, "scorable partition", err)
		}
	}
	engine := cluster.NewEngine(cfg.Cluster, cfg.Seed, res.Features, r.log)
	res.Streams = engine.Streams(sel.Labels, perDoc)
	timings[types.StageL1] = time.Since(start)

	start = time.Now()
	treeWarnings, err := engine.Grow(ctx, res.Streams)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, treeWarnings...)
	timings[types.StageL2] = time.Since(start)

	paths, err := cluster.Paths(res.Streams, c.Len())
	if err != nil {
		return nil, types.NewStageError(types.StageL3, "partition invariant", err)
	}
	res.Assignments, res.Documents = documentTables(c.Documents, paths)
	res.Topics = topicTables(c.Documents, res.Streams)
	levels := levelStats(res.Topics)

	lowConfidence := 0
	for _, l := range levels {
		lowConfidence += l.LowConfidence
	}
	runID, err := r.runID(c)
	if err != nil {
		return nil, err
	}
	res.Summary = types.RunSummary{
		RunID:            runID,
		Documents:        c.Len(),
		Excluded:         c.Excluded,
		Weights:          choice.weights,
		K1:               sel.K,
		Vocabulary:       res.Features.Vocab.Len(),
		TextDims:         res.Features.Dims(),
		VarianceRetained: res.Features.VarianceRetained,
		WeightScores:     choice.scores,
		K1Scores:         sel.Scores,
		Levels:           levels,
		LowConfidence:    lowConfidence,
		Warnings:         warnings,
		StageTimings:     timings,
		Config:           cfg,
	}
	for _, l := range levels {
		fmt.Fprintf(r.out, "level %d: %d topics (size %d-%d, mean %.1f)\n", l.Level, l.Topics, l.MinSize, l.MaxSize, l.Mean)
	}
	if len(warnings) > 0 {
		fmt.Fprintf(r.out, "%d warnings, %d low-confidence topics\n", len(warnings), lowConfidence)
	}
	r.log.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("documents", c.Len()),
		zap.Int("k1", sel.K),
		zap.Int("warnings", len(warnings)))
	return res, nil
}

type weightChoice struct {
	weights   types.Weights
	fused     *mat.Dense
	selection *cluster.StreamSelection
	scores    []types.CandidateScore
}

// chooseWeights fuses with the configured weight, or with every candidate
// when weight search is on. A candidate's score is the best silhouette over
// the k1 candidates; ties go to the weight closest to the configured one.
func (r *Runner) chooseWeights(text, embed *mat.Dense, sil validate.Silhouette) (*weightChoice, error) {
	cfg := r.cfg
	try := func(wt float64) (*weightChoice, error) {
		w, err := fusion.NewWeights(wt)
		if err != nil {
			return nil, types.NewStageError(types.StageFusion, "weights in [0,1] summing to 1", err)
		}
		fused, err := fusion.Fuse(text, embed, w)
		if err != nil {
			return nil, err
		}
		sel, err := cluster.SelectStreams(fused, cfg.Cluster.K1, sil, cfg.Cluster.ScoreTolerance)
		if err != nil {
			return nil, err
		}
		return &weightChoice{weights: w, fused: fused, selection: sel}, nil
	}

	if !cfg.Fusion.SearchWeights {
		return try(cfg.Fusion.TextWeight)
	}

	choices := make([]*weightChoice, len(cfg.Fusion.WeightCandidates))
	scores := make([]types.CandidateScore, len(choices))
	for i, wt := range cfg.Fusion.WeightCandidates {
		ch, err := try(wt)
		if err != nil {
			return nil, err
		}
		choices[i] = ch
		scores[i] = types.CandidateScore{Param: wt, Score: ch.selection.BestScore()}
		r.log.Debug("weight candidate scored", zap.Float64("text_weight", wt), zap.Float64("silhouette", scores[i].Score))
	}
	closest := func(a, b types.CandidateScore) bool {
		da, db := math.Abs(a.Param-cfg.Fusion.TextWeight), math.Abs(b.Param-cfg.Fusion.TextWeight)
		if da != db {
			return da < db
		}
		return a.Param < b.Param
	}
	pick, err := validate.SelectBestBy(scores, validate.HigherIsBetter, cfg.Cluster.ScoreTolerance, closest)
	if err != nil {
		return nil, types.NewStageError(types.StageValidate, "scorable weight candidate", err)
	}
	choice := choices[pick]
	choice.scores = scores
	return choice, nil
}

// runID derives a name-based UUID from the configuration and the document
// ids, so repeating a run reproduces its id.
func (r *Runner) runID(c *corpus.Corpus) (string, error) {
	cfg := r.cfg
	cfg.Cluster.Workers = 0
	cfg.Output = types.OutputConfig{}
	name, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding configuration: %w", err)
	}
	for _, d := range c.Documents {
		name = append(name, '\n')
		name = append(name, d.ID...)
	}
	return uuid.NewSHA1(runNamespace, name).String(), nil
}
