// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/taxonomy-engine/internal/corpus"
	"github.com/pdiddy/taxonomy-engine/internal/coupling"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Summarise the bibliographic coupling network of a corpus",
	Long: `Network loads a corpus and builds its bibliographic coupling network
without clustering. It prints node and edge counts, density, citation
coverage, isolated documents and connected components.`,
	RunE: runNetwork,
}

func init() {
	networkCmd.Flags().StringP("input", "i", "", "corpus file (.jsonl or .yaml)")
	networkCmd.Flags().Bool("yaml", false, "print the summary as YAML")
	rootCmd.AddCommand(networkCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = viper.GetString("input")
	}
	if input == "" {
		return configError(fmt.Errorf("provide a corpus with --input"))
	}

	c, err := corpus.Load(input)
	if err != nil {
		return types.NewStageError(types.StageCorpus, "readable corpus", err)
	}
	net, err := coupling.Build(c.Documents, logger)
	if err != nil {
		return types.NewStageError(types.StageCoupling, "coupling network", err)
	}
	summary := net.Summarize()

	asYAML, _ := cmd.Flags().GetBool("yaml")
	if asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(summary)
	}
	printNetwork(os.Stdout, input, summary)
	return nil
}

func printNetwork(w io.Writer, input string, s types.NetworkSummary) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "coupling network of %s\n", input)
	fmt.Fprintf(w, "  nodes: %d\n", s.Nodes)
	fmt.Fprintf(w, "  edges: %d (density %.4f)\n", s.Edges, s.Density)
	fmt.Fprintf(w, "  coverage: %.1f%% of documents share a reference with another document\n", 100*s.Coverage)
	fmt.Fprintf(w, "  internal citation rate: %.1f%%\n", 100*s.InternalCitationRate)
	fmt.Fprintf(w, "  mean references: %.1f\n", s.MeanReferences)
	fmt.Fprintf(w, "  components: %d (largest holds %.1f%%)\n", s.Components, 100*s.LargestComponentShare)
	isolated := fmt.Sprintf("  isolated: %d\n", s.Isolated)
	if s.Isolated > 0 {
		color.New(color.FgYellow).Fprint(w, isolated)
		return
	}
	fmt.Fprint(w, isolated)
}
