// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the tables of taxonomy runs in SQLite so a tree can
// be browsed and queried after the run that built it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// DBFile is the database file name inside the output directory.
const DBFile = "taxonomy.db"

// createdLayout keeps created_at sortable as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the run database.
type Store struct {
	db *sql.DB
}

// Open opens or creates dir/taxonomy.db and its schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			documents INTEGER NOT NULL,
			k1 INTEGER NOT NULL,
			text_weight REAL NOT NULL,
			citation_weight REAL NOT NULL,
			summary TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			parent_id TEXT,
			level INTEGER NOT NULL,
			size INTEGER NOT NULL,
			k INTEGER NOT NULL,
			quality REAL,
			silhouette REAL,
			converged INTEGER NOT NULL,
			keywords TEXT,
			mean_year REAL,
			PRIMARY KEY (run_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			doc_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			year INTEGER,
			journal TEXT,
			l1_id TEXT NOT NULL,
			l1_label TEXT,
			l2_id TEXT NOT NULL,
			l2_label TEXT,
			l3_id TEXT,
			l3_label TEXT,
			PRIMARY KEY (run_id, doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_parent ON topics(run_id, parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_l2 ON documents(run_id, l2_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun stores the tables of one run. A run with the same id is replaced.
func (s *Store) SaveRun(ctx context.Context, summary types.RunSummary, docs []types.DocumentRow, topics [types.MaxLevel][]types.TopicRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, summary.RunID); err != nil {
		return fmt.Errorf("deleting previous run: %w", err)
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, documents, k1, text_weight, citation_weight, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, time.Now().UTC().Format(createdLayout), summary.Documents, summary.K1,
		summary.Weights.Text, summary.Weights.Citation, string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	topicStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO topics (run_id, id, parent_id, level, size, k, quality, silhouette, converged, keywords, mean_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing topic insert: %w", err)
	}
	defer topicStmt.Close()

	for _, level := range topics {
		for _, t := range level {
			keywordsJSON, err := json.Marshal(t.Keywords)
			if err != nil {
				return fmt.Errorf("encoding keywords of topic %s: %w", t.ID, err)
			}
			_, err = topicStmt.ExecContext(ctx,
				summary.RunID, t.ID, nullable(t.ParentID), t.Level, t.Size, t.K,
				t.Quality, t.Silhouette, t.Converged, string(keywordsJSON), t.MeanYear,
			)
			if err != nil {
				return fmt.Errorf("inserting topic %s: %w", t.ID, err)
			}
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (run_id, doc_id, position, year, journal, l1_id, l1_label, l2_id, l2_label, l3_id, l3_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()

	for i, d := range docs {
		_, err := docStmt.ExecContext(ctx,
			summary.RunID, d.DocID, i, d.Year, d.Journal,
			d.L1ID, d.L1Label, d.L2ID, d.L2Label, nullable(d.L3ID), nullable(d.L3Label),
		)
		if err != nil {
			return fmt.Errorf("inserting document %s: %w", d.DocID, err)
		}
	}

	return tx.Commit()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
