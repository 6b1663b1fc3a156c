// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Hierarchy levels.
const (
	LevelStream   = 1 // major streams
	LevelSubtopic = 2
	LevelMicro    = 3

	MaxLevel = LevelMicro
)

// ClusterNode is a node of the topic tree. Members are document rows in
// ascending order; the members of a node's children partition its members.
type ClusterNode struct {
	// ID is the dotted topic id ("T03", "T03.01", "T03.01.02").
	ID string `json:"id" yaml:"id"`

	// Level is 1, 2 or 3.
	Level int `json:"level" yaml:"level"`

	// ParentID is empty for level-1 nodes.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Members lists the node's document rows, ascending.
	Members []int `json:"members" yaml:"members"`

	// Keywords are the node's highest-weighted vocabulary terms.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// K is the number of children the node's subdivision produced (0 when
	// the node is a leaf). It can be below the factorization rank tried
	// when some components received no member.
	K int `json:"k" yaml:"k"`

	// Quality is the relative reconstruction error of the factorization
	// that produced the node's children (0 when the node is a leaf).
	Quality float64 `json:"quality" yaml:"quality"`

	// Silhouette is the mean silhouette of the node's members in the
	// level-1 partition. Only level-1 nodes carry it.
	Silhouette float64 `json:"silhouette,omitempty" yaml:"silhouette,omitempty"`

	// Converged is false when the factorization that produced the node's
	// children hit its iteration cap; the subtree may be under-resolved.
	Converged bool `json:"converged" yaml:"converged"`

	Children []*ClusterNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Size returns the number of member documents.
func (n *ClusterNode) Size() int { return len(n.Members) }

// IsLeaf reports whether the node has no children.
func (n *ClusterNode) IsLeaf() bool { return len(n.Children) == 0 }

// ChildID returns the id of the idx-th (0-based) child of a node with id
// parent. An empty parent yields a level-1 id.
func ChildID(parent string, idx int) string {
	if parent == "" {
		return fmt.Sprintf("T%02d", idx+1)
	}
	return fmt.Sprintf("%s.%02d", parent, idx+1)
}

// Walk visits nodes depth-first in child order, parents before children.
func Walk(nodes []*ClusterNode, fn func(*ClusterNode)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}

// Assignment places one document in the tree. L3 is empty when the
// document's subtopic was not subdivided.
type Assignment struct {
	DocID string `json:"doc_id" yaml:"doc_id"`
	L1    string `json:"l1" yaml:"l1"`
	L2    string `json:"l2" yaml:"l2"`
	L3    string `json:"l3,omitempty" yaml:"l3,omitempty"`
}

// DocumentRow is one row of the document-level assignment table.
type DocumentRow struct {
	DocID   string `json:"doc_id" yaml:"doc_id"`
	Year    int    `json:"year" yaml:"year"`
	Journal string `json:"journal" yaml:"journal"`
	L1ID    string `json:"l1_id" yaml:"l1_id"`
	L1Label string `json:"l1_label" yaml:"l1_label"`
	L2ID    string `json:"l2_id" yaml:"l2_id"`
	L2Label string `json:"l2_label" yaml:"l2_label"`
	L3ID    string `json:"l3_id" yaml:"l3_id"`
	L3Label string `json:"l3_label" yaml:"l3_label"`
}

// TopicRow is one row of a per-level topic table.
type TopicRow struct {
	ID         string   `json:"id" yaml:"id"`
	ParentID   string   `json:"parent_id" yaml:"parent_id"`
	Level      int      `json:"level" yaml:"level"`
	Size       int      `json:"size" yaml:"size"`
	K          int      `json:"k" yaml:"k"`
	Quality    float64  `json:"quality" yaml:"quality"`
	Silhouette float64  `json:"silhouette" yaml:"silhouette"`
	Converged  bool     `json:"converged" yaml:"converged"`
	Keywords   []string `json:"keywords" yaml:"keywords"`
	MeanYear   float64  `json:"mean_year" yaml:"mean_year"`
}

// NetworkSummary describes the bibliographic coupling network.
type NetworkSummary struct {
	Nodes int `json:"nodes" yaml:"nodes"`
	Edges int `json:"edges" yaml:"edges"`

	// Density is Edges over the number of possible undirected pairs.
	Density float64 `json:"density" yaml:"density"`

	// Coverage is the fraction of documents with at least one in-corpus reference.
	Coverage float64 `json:"coverage" yaml:"coverage"`

	// Isolated counts documents without any coupling partner.
	Isolated int `json:"isolated" yaml:"isolated"`

	Components            int     `json:"components" yaml:"components"`
	LargestComponentShare float64 `json:"largest_component_share" yaml:"largest_component_share"`

	MeanReferences float64 `json:"mean_references" yaml:"mean_references"`

	// InternalCitationRate is the fraction of reference occurrences whose
	// target is itself a corpus document.
	InternalCitationRate float64 `json:"internal_citation_rate" yaml:"internal_citation_rate"`
}

// CandidateScore records the score of one tested parameter.
type CandidateScore struct {
	Param float64 `json:"param" yaml:"param"`
	Score float64 `json:"score" yaml:"score"`
}

// RunSummary is written next to the tables at the end of a run.
type RunSummary struct {
	RunID      string  `json:"run_id" yaml:"run_id"`
	Documents  int     `json:"documents" yaml:"documents"`
	Excluded   int     `json:"excluded" yaml:"excluded"`
	Weights    Weights `json:"weights" yaml:"weights"`
	K1         int     `json:"k1" yaml:"k1"`
	Vocabulary int     `json:"vocabulary" yaml:"vocabulary"`
	TextDims   int     `json:"text_dims" yaml:"text_dims"`

	// VarianceRetained is the fraction of TF-IDF variance kept by the reduction.
	VarianceRetained float64 `json:"variance_retained" yaml:"variance_retained"`

	WeightScores []CandidateScore `json:"weight_scores,omitempty" yaml:"weight_scores,omitempty"`
	K1Scores     []CandidateScore `json:"k1_scores" yaml:"k1_scores"`

	Levels        []LevelStats             `json:"levels" yaml:"levels"`
	LowConfidence int                      `json:"low_confidence" yaml:"low_confidence"`
	Warnings      []Warning                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StageTimings  map[string]time.Duration `json:"stage_timings" yaml:"stage_timings"`
	Config        Config                   `json:"config" yaml:"config"`
}

// LevelStats describes the topic sizes at one level of the tree.
type LevelStats struct {
	Level   int     `json:"level" yaml:"level"`
	Topics  int     `json:"topics" yaml:"topics"`
	MinSize int     `json:"min_size" yaml:"min_size"`
	MaxSize int     `json:"max_size" yaml:"max_size"`
	Mean    float64 `json:"mean_size" yaml:"mean_size"`
	StdDev  float64 `json:"std_size" yaml:"std_size"`

	// LowConfidence counts topics whose factorization did not converge.
	LowConfidence int `json:"low_confidence" yaml:"low_confidence"`
}
