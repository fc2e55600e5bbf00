// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/ingest"
	"github.com/pdiddy/triage-engine/internal/store"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list, show, and delete triage projects",
	Long: `Project manages triage projects. A project is created from a citation
file (CSV, JSON, or YAML) and keeps its scores, labels, and training history
in the database until it is deleted.`,
}

// --- create subcommand ---

var projectCreateCmd = &cobra.Command{
	Use:   "create <name> <citation-file>",
	Short: "Create a project from a citation file",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectCreate,
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	citations, err := readCitations(cmd, args[1])
	if err != nil {
		return err
	}

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Create(context.Background(), sessionFor(cmd), args[0], citations)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %s\n", ctrl.ID())
	printProgress(out, ctrl.Progress())
	return nil
}

// readCitations parses path using --format or the file extension.
func readCitations(cmd *cobra.Command, path string) ([]types.Citation, error) {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		return ingest.ReadFile(path)
	}
	f, err := ingest.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return ingest.ParseFile(path, f)
}

// --- list subcommand ---

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

func runProjectList(cmd *cobra.Command, args []string) error {
	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := projects.List(context.Background())
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatProjectList(cmd.OutOrStdout(), list, jsonOutput)
}

func formatProjectList(w io.Writer, list []store.Summary, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No projects.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-30s  %-10s  %-9s  %s\n", "ID", "Name", "Status", "Iteration", "Citations")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, p := range list {
		name := p.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-30s  %-10s  %4d/%-4d  %d\n",
			p.ID, name, p.Status, p.CurrentIteration, p.MaxIterations, p.Citations)
	}
	fmt.Fprintf(w, "\n%d projects\n", len(list))
	return nil
}

// --- show subcommand ---

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project's status and selection",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, ctrl.Progress())
	}

	snap := ctrl.Snapshot()
	fmt.Fprintf(out, "Project %s (%s)\n", snap.ID, snap.Name)
	printProgress(out, ctrl.Progress())
	if len(snap.PendingRelevant) > 0 {
		fmt.Fprintf(out, "  Pending relevant:   %s\n", strings.Join(snap.PendingRelevant, ", "))
	}
	if len(snap.PendingIrrelevant) > 0 {
		fmt.Fprintf(out, "  Pending irrelevant: %s\n", strings.Join(snap.PendingIrrelevant, ", "))
	}
	if len(snap.Keywords.Include) > 0 || len(snap.Keywords.Exclude) > 0 {
		fmt.Fprintf(out, "  Include keywords:   %s\n", strings.Join(snap.Keywords.Include, ", "))
		fmt.Fprintf(out, "  Exclude keywords:   %s\n", strings.Join(snap.Keywords.Exclude, ", "))
	}
	return nil
}

func printProgress(w io.Writer, p triage.Progress) {
	fmt.Fprintf(w, "  Status:     %s\n", p.Status)
	fmt.Fprintf(w, "  Iteration:  %d of %d\n", p.CurrentIteration, p.MaxIterations)
	fmt.Fprintf(w, "  Citations:  %d\n", p.TotalCitations)
	fmt.Fprintf(w, "  Selection:  %d/%d relevant, %d/%d irrelevant\n",
		p.RelevantCount, p.Quota, p.IrrelevantCount, p.Quota)
	if p.ReadyToTrain {
		fmt.Fprintln(w, "  Ready to train.")
	}
}

// --- delete subcommand ---

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and all of its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := projects.Delete(context.Background(), sessionFor(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
	return nil
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <citation-file>",
	Short: "Check a citation file without creating a project",
	Long: `Ingest parses a citation file the way project create would and reports
what it found: the number of citations, the synthetic ids assigned to rows
without one, and the extra columns kept as metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	citations, err := readCitations(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, citations)
	}

	var noAbstract int
	columns := make(map[string]bool)
	for _, c := range citations {
		if c.Abstract == "" {
			noAbstract++
		}
		for k := range c.Metadata {
			columns[k] = true
		}
	}
	fmt.Fprintf(out, "%d citations in %s\n", len(citations), args[0])
	if noAbstract > 0 {
		fmt.Fprintf(out, "  %d without an abstract\n", noAbstract)
	}
	if len(columns) > 0 {
		names := make([]string, 0, len(columns))
		for k := range columns {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Fprintf(out, "  Metadata columns: %s\n", strings.Join(names, ", "))
	}
	preview, _ := cmd.Flags().GetInt("preview")
	for i, c := range citations {
		if i >= preview {
			break
		}
		fmt.Fprintf(out, "  %-16s  %s\n", c.ID, truncate(c.Title, 70))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	projectCreateCmd.Flags().String("format", "", "citation file format: csv, json, yaml (default: from extension)")
	projectListCmd.Flags().Bool("json", false, "output as JSON")
	projectShowCmd.Flags().Bool("json", false, "output as JSON")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)

	ingestCmd.Flags().String("format", "", "citation file format: csv, json, yaml (default: from extension)")
	ingestCmd.Flags().Int("preview", 5, "number of citations to print")
	ingestCmd.Flags().Bool("json", false, "output parsed citations as JSON")
	rootCmd.AddCommand(ingestCmd)
}
