// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// ErrNoRuns is returned when the database holds no run.
var ErrNoRuns = errors.New("no runs stored")

// defaultMaxResults caps document queries without an explicit limit.
const defaultMaxResults = 100

// RunInfo identifies a stored run.
type RunInfo struct {
	ID         string  `json:"id" yaml:"id"`
	CreatedAt  string  `json:"created_at" yaml:"created_at"`
	Documents  int     `json:"documents" yaml:"documents"`
	K1         int     `json:"k1" yaml:"k1"`
	TextWeight float64 `json:"text_weight" yaml:"text_weight"`
}

// TopicNode is a stored topic with its children, rebuilt from the topic table.
type TopicNode struct {
	types.TopicRow
	Children []*TopicNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// DocumentQuery filters the document table of one run.
type DocumentQuery struct {
	// RunID selects the run. Empty uses the latest run.
	RunID string

	// TopicID keeps documents placed in the topic at any level.
	TopicID string

	// Keyword keeps documents whose level-1 or level-2 topic lists the keyword.
	Keyword string

	// Journal filters by exact journal name.
	Journal string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, documents, k1, text_weight FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Documents, &r.K1, &r.TextWeight); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently saved run.
func (s *Store) LatestRun(ctx context.Context) (*RunInfo, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// Summary returns the summary stored with a run.
func (s *Store) Summary(ctx context.Context, runID string) (*types.RunSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, runID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	var summary types.RunSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return &summary, nil
}

// Tree rebuilds the topic tree of a run. Roots and children keep their id order.
func (s *Store) Tree(ctx context.Context, runID string) ([]*TopicNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, level, size, k, quality, silhouette, converged, keywords, mean_year
		FROM topics WHERE run_id = ? ORDER BY level, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var (
		roots []*TopicNode
		byID  = make(map[string]*TopicNode)
	)
	for rows.Next() {
		var (
			n            TopicNode
			parentID     sql.NullString
			keywordsJSON sql.NullString
		)
		if err := rows.Scan(
			&n.ID, &parentID, &n.Level, &n.Size, &n.K, &n.Quality, &n.Silhouette,
			&n.Converged, &keywordsJSON, &n.MeanYear,
		); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		if keywordsJSON.Valid {
			if err := json.Unmarshal([]byte(keywordsJSON.String), &n.Keywords); err != nil {
				return nil, fmt.Errorf("decoding keywords of topic %s: %w", n.ID, err)
			}
		}
		node := &n
		byID[n.ID] = node
		if !parentID.Valid {
			roots = append(roots, node)
			continue
		}
		n.ParentID = parentID.String
		parent, ok := byID[parentID.String]
		if !ok {
			return nil, fmt.Errorf("topic %s: parent %s not stored", n.ID, parentID.String)
		}
		parent.Children = append(parent.Children, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("run %s has no topics", runID)
	}
	return roots, nil
}

// Documents returns the document rows of a run matching q, in input order.
func (s *Store) Documents(ctx context.Context, q DocumentQuery) ([]types.DocumentRow, error) {
	runID := q.RunID
	if runID == "" {
		latest, err := s.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		runID = latest.ID
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT d.doc_id, d.year, d.journal, d.l1_id, d.l1_label, d.l2_id, d.l2_label, d.l3_id, d.l3_label
		FROM documents d
		WHERE d.run_id = ?`)
	args = append(args, runID)

	if q.TopicID != "" {
		qb.WriteString(` AND (d.l1_id = ? OR d.l2_id = ? OR d.l3_id = ?)`)
		args = append(args, q.TopicID, q.TopicID, q.TopicID)
	}

	if q.Journal != "" {
		qb.WriteString(` AND d.journal = ?`)
		args = append(args, q.Journal)
	}

	if q.Keyword != "" {
		qb.WriteString(` AND EXISTS (
			SELECT 1 FROM topics t, json_each(t.keywords) k
			WHERE t.run_id = d.run_id AND t.id IN (d.l1_id, d.l2_id) AND k.value = ?)`)
		args = append(args, strings.ToLower(q.Keyword))
	}

	qb.WriteString(` ORDER BY d.position LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var results []types.DocumentRow
	for rows.Next() {
		var (
			d                         types.DocumentRow
			journal, l1Label, l2Label sql.NullString
			l3ID, l3Label             sql.NullString
			year                      sql.NullInt64
		)
		if err := rows.Scan(
			&d.DocID, &year, &journal, &d.L1ID, &l1Label, &d.L2ID, &l2Label, &l3ID, &l3Label,
		); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Year = int(year.Int64)
		d.Journal = journal.String
		d.L1Label = l1Label.String
		d.L2Label = l2Label.String
		d.L3ID = l3ID.String
		d.L3Label = l3Label.String
		results = append(results, d)
	}
	return results, rows.Err()
}
