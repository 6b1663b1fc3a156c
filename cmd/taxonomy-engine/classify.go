// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/taxonomy-engine/internal/export"
	"github.com/pdiddy/taxonomy-engine/internal/pipeline"
	"github.com/pdiddy/taxonomy-engine/internal/store"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Build the three-level taxonomy of a corpus",
	Long: `Classify loads a corpus, builds the text and citation representations,
fuses them, and grows the stream/subtopic/micro-topic hierarchy. It writes
the document assignment table, one topic table per level, the network
summary and the run summary to the output directory, and stores the same
tables in taxonomy.db unless --sqlite=false.`,
	RunE: runClassify,
}

func init() {
	addRunFlags(classifyCmd.Flags())
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.InputPath == "" {
		return configError(fmt.Errorf("provide a corpus with --input"))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	res, err := pipeline.New(cfg, logger, os.Stdout).Run(ctx)
	if err != nil {
		return err
	}

	written, err := export.WriteDir(cfg.Output.Dir, export.Run{
		Documents: res.Documents,
		Topics:    res.Topics,
		Network:   res.NetworkSummary,
		Summary:   res.Summary,
	}, cfg.Output.JSON)
	if err != nil {
		return types.NewStageError(types.StageExport, "writable output directory", err)
	}

	if cfg.Output.SQLite {
		s, err := store.Open(cfg.Output.Dir)
		if err != nil {
			return types.NewStageError(types.StageExport, "writable database", err)
		}
		defer s.Close()
		if err := s.SaveRun(ctx, res.Summary, res.Documents, res.Topics); err != nil {
			return types.NewStageError(types.StageExport, "writable database", err)
		}
		written = append(written, store.DBFile)
		logger.Debug("run stored", zap.String("run_id", res.Summary.RunID))
	}

	printSummary(os.Stdout, res.Summary, written)
	return nil
}

func printSummary(w io.Writer, s types.RunSummary, written []string) {
	heading := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)

	heading.Fprintf(w, "\nrun %s\n", s.RunID)
	fmt.Fprintf(w, "  documents: %d (%d excluded)\n", s.Documents, s.Excluded)
	fmt.Fprintf(w, "  weights: text %.2f, citation %.2f\n", s.Weights.Text, s.Weights.Citation)
	fmt.Fprintf(w, "  vocabulary: %d terms, %d dims, %.1f%% variance retained\n",
		s.Vocabulary, s.TextDims, 100*s.VarianceRetained)
	fmt.Fprintf(w, "  streams: %d\n", s.K1)
	for _, l := range s.Levels {
		fmt.Fprintf(w, "  level %d: %d topics, size %d..%d (mean %.1f)",
			l.Level, l.Topics, l.MinSize, l.MaxSize, l.Mean)
		if l.LowConfidence > 0 {
			warn.Fprintf(w, ", %d low confidence", l.LowConfidence)
		}
		fmt.Fprintln(w)
	}
	if len(s.Warnings) > 0 {
		warn.Fprintf(w, "  %d warnings (see %s)\n", len(s.Warnings), export.SummaryFile)
	}
	fmt.Fprintf(w, "  wrote %d files\n", len(written))
}
