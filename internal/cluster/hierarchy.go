// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cluster builds the three-level topic tree. Level 1 partitions the
// fused document vectors with Ward linkage; every level-1 node is then
// subdivided by non-negative matrix factorization of its members' TF-IDF
// rows (level 2), and every large enough level-2 node once more (level 3).
package cluster

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"runtime"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/taxonomy-engine/internal/textfeat"
	"github.com/pdiddy/taxonomy-engine/internal/validate"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// ErrIndivisible is returned by Subdivide when a node cannot be split.
var ErrIndivisible = errors.New("node cannot be subdivided")

// Engine owns the topic tree of one run.
type Engine struct {
	cfg      types.ClusterConfig
	seed     uint64
	features *textfeat.Features
	log      *zap.Logger
}

// NewEngine returns an engine subdividing over the TF-IDF rows of features.
// A nil logger discards output.
func NewEngine(cfg types.ClusterConfig, seed uint64, features *textfeat.Features, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, seed: seed, features: features, log: log}
}

// Streams turns a level-1 labeling into nodes, one per label, ordered by
// smallest member. silhouettes, when non-nil, holds every row's silhouette
// and sets each node's mean.
func (e *Engine) Streams(labels []int, silhouettes []float64) []*types.ClusterNode {
	groups := groupRows(identity(len(labels)), labels)
	nodes := make([]*types.ClusterNode, len(groups))
	for i, members := range groups {
		node := &types.ClusterNode{
			ID:        types.ChildID("", i),
			Level:     types.LevelStream,
			Members:   members,
			Keywords:  e.features.TopTerms(members, e.cfg.LabelTerms),
			Converged: true,
		}
		if silhouettes != nil {
			var sum float64
			for _, r := range members {
				sum += silhouettes[r]
			}
			node.Silhouette = sum / float64(len(members))
		}
		nodes[i] = node
	}
	return nodes
}

// Subdivide factorizes the members of node once per feasible candidate k,
// keeps the k with the lowest relative reconstruction error (smallest k
// within ScoreTolerance of it) and attaches one child per non-empty
// component; node.K is the resulting child count. It returns the score of
// every tried k. Errors wrapping ErrIndivisible leave the node untouched.
func (e *Engine) Subdivide(node *types.ClusterNode, candidates []int) ([]types.CandidateScore, error) {
	var ks []int
	for _, k := range candidates {
		if k >= 2 && k <= node.Size() && !slices.Contains(ks, k) {
			ks = append(ks, k)
		}
	}
	slices.Sort(ks)
	if len(ks) == 0 {
		return nil, fmt.Errorf("%w: %d members for candidates %v", ErrIndivisible, node.Size(), candidates)
	}

	x, _ := e.features.TFIDF.SelectRows(node.Members)
	nmf := NMF{MaxIter: e.cfg.MaxIter, Tolerance: e.cfg.Tolerance}
	fits := make([]*Factorization, len(ks))
	scores := make([]types.CandidateScore, len(ks))
	for i, k := range ks {
		fit, err := nmf.Fit(x, k, e.rng(node.ID, k))
		if errors.Is(err, ErrZeroMatrix) {
			return nil, fmt.Errorf("%w: members share no vocabulary terms", ErrIndivisible)
		}
		if err != nil {
			return nil, fmt.Errorf("factorizing %s with k=%d: %w", node.ID, k, err)
		}
		fits[i] = fit
		scores[i] = types.CandidateScore{Param: float64(k), Score: fit.RelError}
	}

	pick, err := validate.SelectBest(scores, validate.LowerIsBetter, e.cfg.ScoreTolerance)
	if err != nil {
		return scores, fmt.Errorf("selecting k for %s: %w", node.ID, err)
	}
	fit := fits[pick]
	groups := groupRows(node.Members, fit.Assign())
	if len(groups) < 2 {
		return scores, fmt.Errorf("%w: k=%d left one non-empty component", ErrIndivisible, ks[pick])
	}

	children := make([]*types.ClusterNode, len(groups))
	for i, members := range groups {
		children[i] = &types.ClusterNode{
			ID:        types.ChildID(node.ID, i),
			Level:     node.Level + 1,
			ParentID:  node.ID,
			Members:   members,
			Keywords:  e.features.TopTerms(members, e.cfg.LabelTerms),
			Converged: true,
		}
	}
	if len(groups) < ks[pick] {
		e.log.Debug("empty components dropped", zap.String("node", node.ID),
			zap.Int("rank", ks[pick]), zap.Int("children", len(groups)))
	}
	node.Children = children
	node.K = len(groups)
	node.Quality = fit.RelError
	node.Converged = fit.Converged
	return scores, nil
}

// Grow subdivides every stream into subtopics and every eligible subtopic
// into micro-topics. Nodes of one level are processed concurrently; each
// task only touches its own node, and warnings come back in tree order.
func (e *Engine) Grow(ctx context.Context, streams []*types.ClusterNode) ([]types.Warning, error) {
	l2 := make([][]types.Warning, len(streams))
	err := e.each(ctx, streams, func(i int, node *types.ClusterNode) error {
		w, err := e.growStream(node)
		l2[i] = w
		return err
	})
	if err != nil {
		return nil, err
	}

	var subtopics []*types.ClusterNode
	for _, s := range streams {
		subtopics = append(subtopics, s.Children...)
	}
	l3 := make([][]types.Warning, len(subtopics))
	err = e.each(ctx, subtopics, func(i int, node *types.ClusterNode) error {
		w, err := e.growSubtopic(node)
		l3[i] = w
		return err
	})
	if err != nil {
		return nil, err
	}

	var warnings []types.Warning
	for _, w := range append(l2, l3...) {
		warnings = append(warnings, w...)
	}
	e.log.Info("hierarchy grown",
		zap.Int("streams", len(streams)),
		zap.Int("subtopics", len(subtopics)),
		zap.Int("warnings", len(warnings)))
	return warnings, nil
}

func (e *Engine) growStream(node *types.ClusterNode) ([]types.Warning, error) {
	if node.Size() < slices.Min(e.cfg.K2) {
		mirror(node)
		return []types.Warning{{Stage: types.StageL2, NodeID: node.ID,
			Message: fmt.Sprintf("%d members is below the smallest k2; kept as a single subtopic", node.Size())}}, nil
	}
	scores, err := e.Subdivide(node, e.cfg.K2)
	if errors.Is(err, ErrIndivisible) {
		mirror(node)
		return []types.Warning{{Stage: types.StageL2, NodeID: node.ID, Message: err.Error() + "; kept as a single subtopic"}}, nil
	}
	if err != nil {
		return nil, types.NewStageError(types.StageL2, "non-negative factorization", err)
	}
	e.log.Debug("stream subdivided", zap.String("node", node.ID), zap.Int("k", node.K),
		zap.Float64("error", node.Quality), zap.Any("scores", scores))
	return convergence(types.StageL2, node), nil
}

func (e *Engine) growSubtopic(node *types.ClusterNode) ([]types.Warning, error) {
	if node.Size() < e.cfg.MinMembersL3 || node.Size() < slices.Min(e.cfg.K3) {
		return nil, nil
	}
	scores, err := e.Subdivide(node, e.cfg.K3)
	if errors.Is(err, ErrIndivisible) {
		return []types.Warning{{Stage: types.StageL3, NodeID: node.ID, Message: err.Error() + "; left as a leaf"}}, nil
	}
	if err != nil {
		return nil, types.NewStageError(types.StageL3, "non-negative factorization", err)
	}
	e.log.Debug("subtopic subdivided", zap.String("node", node.ID), zap.Int("k", node.K),
		zap.Float64("error", node.Quality), zap.Any("scores", scores))
	return convergence(types.StageL3, node), nil
}

func convergence(stage string, node *types.ClusterNode) []types.Warning {
	if node.Converged {
		return nil
	}
	return []types.Warning{{Stage: stage, NodeID: node.ID,
		Message: "factorization hit the iteration cap; children come from the best iterate and may be under-resolved"}}
}

// each runs fn over nodes on a pool of cfg.Workers goroutines.
func (e *Engine) each(ctx context.Context, nodes []*types.ClusterNode, fn func(int, *types.ClusterNode) error) error {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, node := range nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i, node)
		})
	}
	return g.Wait()
}

// rng seeds a node's factorization from the run seed and the node id, so
// the result does not depend on scheduling order.
func (e *Engine) rng(nodeID string, k int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(nodeID))
	return rand.New(rand.NewPCG(e.seed, h.Sum64()^uint64(k)))
}

// mirror gives node a single child with the same members.
func mirror(node *types.ClusterNode) {
	node.Children = []*types.ClusterNode{{
		ID:        types.ChildID(node.ID, 0),
		Level:     node.Level + 1,
		ParentID:  node.ID,
		Members:   slices.Clone(node.Members),
		Keywords:  slices.Clone(node.Keywords),
		Converged: true,
	}}
	node.K = 1
	node.Quality = 0
	node.Converged = true
}

// groupRows splits rows by label. Groups are ordered by their first row and
// keep the input order inside.
func groupRows(rows, labels []int) [][]int {
	index := make(map[int]int)
	var groups [][]int
	for i, r := range rows {
		g, ok := index[labels[i]]
		if !ok {
			g = len(groups)
			index[labels[i]] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}
	return groups
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
