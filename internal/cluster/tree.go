// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// Path is the chain of nodes one document belongs to. L3 is nil when the
// document's subtopic was not subdivided.
type Path struct {
	L1, L2, L3 *types.ClusterNode
}

// Paths returns the path of every document row 0..n-1. It fails unless the
// streams partition all rows and every node's children partition its
// members.
func Paths(streams []*types.ClusterNode, n int) ([]Path, error) {
	paths := make([]Path, n)
	for _, s := range streams {
		for _, r := range s.Members {
			if r < 0 || r >= n {
				return nil, fmt.Errorf("node %s: member row %d out of range", s.ID, r)
			}
			if paths[r].L1 != nil {
				return nil, fmt.Errorf("row %d in both %s and %s", r, paths[r].L1.ID, s.ID)
			}
			paths[r].L1 = s
		}
	}

	level := func(get func(*Path) **types.ClusterNode) func(int) **types.ClusterNode {
		return func(r int) **types.ClusterNode {
			if r < 0 || r >= n {
				return nil
			}
			return get(&paths[r])
		}
	}
	l1 := level(func(p *Path) **types.ClusterNode { return &p.L1 })
	l2 := level(func(p *Path) **types.ClusterNode { return &p.L2 })
	l3 := level(func(p *Path) **types.ClusterNode { return &p.L3 })
	for _, s := range streams {
		if err := checkChildren(s, l1, l2); err != nil {
			return nil, err
		}
		for _, sub := range s.Children {
			if err := checkChildren(sub, l2, l3); err != nil {
				return nil, err
			}
		}
	}

	for r, p := range paths {
		if p.L1 == nil {
			return nil, fmt.Errorf("row %d has no level-1 topic", r)
		}
		if p.L2 == nil {
			return nil, fmt.Errorf("row %d has no level-2 topic under %s", r, p.L1.ID)
		}
	}
	return paths, nil
}

// checkChildren verifies that the children of node partition its members.
// parent and child return a row's slot at node's level and at the
// children's level, or nil for a row out of range.
func checkChildren(node *types.ClusterNode, parent, child func(int) **types.ClusterNode) error {
	if node.IsLeaf() {
		return nil
	}
	total := 0
	for _, c := range node.Children {
		total += c.Size()
		for _, r := range c.Members {
			if p := parent(r); p == nil || *p != node {
				return fmt.Errorf("node %s: row %d is not a member of parent %s", c.ID, r, node.ID)
			}
			slot := child(r)
			if *slot != nil {
				return fmt.Errorf("row %d in both %s and %s", r, (*slot).ID, c.ID)
			}
			*slot = c
		}
	}
	if total != node.Size() {
		return fmt.Errorf("children of %s hold %d rows, parent has %d", node.ID, total, node.Size())
	}
	return nil
}
