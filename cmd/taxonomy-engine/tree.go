// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/taxonomy-engine/internal/store"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the stored taxonomy tree of a run",
	Long: `Tree reads taxonomy.db from the output directory and prints the
stream/subtopic/micro-topic tree of the latest run (or --run) with sizes,
keywords and low-confidence markers.`,
	RunE: runTree,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List stored document assignments",
	Long: `Documents lists the document assignment table of a stored run,
filtered by topic id (any level), topic keyword, or journal.`,
	RunE: runDocuments,
}

func init() {
	for _, c := range []*cobra.Command{treeCmd, documentsCmd} {
		c.Flags().StringP("output", "o", "", "output directory holding taxonomy.db (default output)")
		c.Flags().String("run", "", "run id (default latest)")
		c.Flags().Bool("json", false, "output as JSON")
	}
	treeCmd.Flags().Int("depth", types.MaxLevel, "deepest level printed")

	documentsCmd.Flags().String("topic", "", "filter by topic id")
	documentsCmd.Flags().String("keyword", "", "filter by topic keyword")
	documentsCmd.Flags().String("journal", "", "filter by journal")
	documentsCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(documentsCmd)
}

// openStore opens the database of the output directory without creating one.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = viper.GetString("output.dir")
	}
	if _, err := os.Stat(filepath.Join(dir, store.DBFile)); err != nil {
		return nil, fmt.Errorf("no %s in %s: run classify first", store.DBFile, dir)
	}
	return store.Open(dir)
}

func runTree(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	runID, _ := cmd.Flags().GetString("run")
	if runID == "" {
		latest, err := s.LatestRun(ctx)
		if err != nil {
			return err
		}
		runID = latest.ID
	}
	roots, err := s.Tree(ctx, runID)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(roots)
	}
	depth, _ := cmd.Flags().GetInt("depth")
	color.New(color.Bold).Fprintf(os.Stdout, "run %s\n", runID)
	printTree(os.Stdout, roots, depth)
	return nil
}

var levelColors = [types.MaxLevel]*color.Color{
	color.New(color.FgCyan, color.Bold),
	color.New(color.FgGreen),
	color.New(color.FgWhite),
}

func printTree(w io.Writer, nodes []*store.TopicNode, depth int) {
	for _, n := range nodes {
		if n.Level > depth {
			return
		}
		indent := strings.Repeat("  ", n.Level-1)
		levelColors[n.Level-1].Fprintf(w, "%s%s", indent, n.ID)
		fmt.Fprintf(w, " (%d) %s", n.Size, strings.Join(n.Keywords, ", "))
		if !n.Converged {
			color.New(color.FgYellow).Fprint(w, " [low confidence]")
		}
		fmt.Fprintln(w)
		printTree(w, n.Children, depth)
	}
}

func runDocuments(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	q := store.DocumentQuery{}
	q.RunID, _ = cmd.Flags().GetString("run")
	q.TopicID, _ = cmd.Flags().GetString("topic")
	q.Keyword, _ = cmd.Flags().GetString("keyword")
	q.Journal, _ = cmd.Flags().GetString("journal")
	q.MaxResults, _ = cmd.Flags().GetInt("limit")

	rows, err := s.Documents(cmd.Context(), q)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return formatDocuments(os.Stdout, rows)
}

func formatDocuments(w io.Writer, rows []types.DocumentRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return nil
	}

	fmt.Fprintf(w, "%-20s  %-4s  %-20s  %-6s  %-9s  %-12s  %s\n",
		"Document", "Year", "Journal", "Stream", "Subtopic", "Micro-topic", "Label")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range rows {
		year := ""
		if r.Year != 0 {
			year = fmt.Sprint(r.Year)
		}
		label := r.L2Label
		if r.L3Label != "" {
			label = r.L3Label
		}
		fmt.Fprintf(w, "%-20s  %-4s  %-20s  %-6s  %-9s  %-12s  %s\n",
			truncate(r.DocID, 20), year, truncate(r.Journal, 20), r.L1ID, r.L2ID, r.L3ID, label)
	}

	fmt.Fprintf(w, "\n%d documents\n", len(rows))
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
