// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/taxonomy-engine/internal/store"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

func runCommand(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	configureViper(viper.GetViper())
	cmd := &cobra.Command{Use: "classify"}
	addRunFlags(cmd.Flags())
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(runCommand(t))
	require.NoError(t, err)

	d := types.DefaultConfig()
	assert.Equal(t, d.Seed, cfg.Seed)
	assert.Equal(t, d.Cluster.K1, cfg.Cluster.K1)
	assert.Equal(t, d.Cluster.K3, cfg.Cluster.K3)
	assert.Equal(t, d.Fusion.WeightCandidates, cfg.Fusion.WeightCandidates)
	assert.Equal(t, d.Output, cfg.Output)
	assert.InDelta(t, 0.6, cfg.Fusion.TextWeight, 1e-12)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	cmd := runCommand(t)
	require.NoError(t, cmd.Flags().Set("k1", "3,4"))
	require.NoError(t, cmd.Flags().Set("text-weight", "0.7"))
	require.NoError(t, cmd.Flags().Set("output", "results"))
	require.NoError(t, cmd.Flags().Set("sqlite", "false"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, cfg.Cluster.K1)
	assert.InDelta(t, 0.7, cfg.Fusion.TextWeight, 1e-12)
	assert.InDelta(t, 0.3, cfg.Weights().Citation, 1e-12)
	assert.Equal(t, "results", cfg.Output.Dir)
	assert.False(t, cfg.Output.SQLite)
	assert.Equal(t, types.DefaultConfig().Cluster.K2, cfg.Cluster.K2)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("TAXONOMY_ENGINE_CLUSTER_MIN_MEMBERS_L3", "7")
	t.Setenv("TAXONOMY_ENGINE_SEED", "9")

	cfg, err := loadConfig(runCommand(t))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cluster.MinMembersL3)
	assert.Equal(t, uint64(9), cfg.Seed)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid weight", types.NewStageError(types.StageConfig, "valid configuration", types.Weights{Text: 2, Citation: -1}.Validate()), exitConfig},
		{"invalid config", configError(errors.New("bad flag")), exitConfig},
		{"runtime", fmt.Errorf("stage cluster-l1: %w", types.ErrDegenerateClustering), exitRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("json", "info")
	require.NoError(t, err)
	_, err = newLogger("xml", "info")
	assert.Error(t, err)
	_, err = newLogger("console", "loud")
	assert.Error(t, err)
}

func TestPrintTreeRespectsDepth(t *testing.T) {
	color.NoColor = true
	roots := []*store.TopicNode{{
		TopicRow: types.TopicRow{ID: "T01", Level: 1, Size: 4, Converged: true, Keywords: []string{"soil", "carbon"}},
		Children: []*store.TopicNode{{
			TopicRow: types.TopicRow{ID: "T01.01", Level: 2, Size: 4, Keywords: []string{"soil"}},
			Children: []*store.TopicNode{{
				TopicRow: types.TopicRow{ID: "T01.01.01", Level: 3, Size: 2, Converged: true},
			}},
		}},
	}}

	var full bytes.Buffer
	printTree(&full, roots, types.MaxLevel)
	assert.Equal(t, "T01 (4) soil, carbon\n  T01.01 (4) soil [low confidence]\n    T01.01.01 (2) \n", full.String())

	var shallow bytes.Buffer
	printTree(&shallow, roots, 2)
	assert.NotContains(t, shallow.String(), "T01.01.01")
}

func TestFormatDocuments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatDocuments(&buf, nil))
	assert.Equal(t, "No documents found.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatDocuments(&buf, []types.DocumentRow{
		{DocID: "W1", Year: 2020, Journal: "J", L1ID: "T01", L2ID: "T01.01", L2Label: "soil"},
	}))
	assert.Contains(t, buf.String(), "W1")
	assert.Contains(t, buf.String(), "soil")
	assert.Contains(t, buf.String(), "1 documents")
}
