// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/ranking"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// --- page command ---

var pageCmd = &cobra.Command{
	Use:   "page <project-id> [page-number]",
	Short: "Show one page of the ranking, highest score first",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPage,
}

func runPage(cmd *cobra.Command, args []string) error {
	number := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid page number %q", args[1])
		}
		number = n
	}
	size, _ := cmd.Flags().GetInt("size")
	if size <= 0 {
		size = engineCfg.Triage.PageSize
	}

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	page, err := ctrl.View().GetPage(number, size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, page)
	}
	fmt.Fprintf(out, "Page %d of %d (%d citations)\n", page.Number, page.TotalPages, page.TotalItems)
	printCitations(out, page.Citations, (page.Number-1)*page.Size)
	return nil
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List citations ranked by score",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	sortFlag, _ := cmd.Flags().GetString("sort")
	order, err := ranking.ParseOrder(sortFlag)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	cs := ctrl.View().List(order, limit)

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, cs)
	}
	printCitations(out, cs, 0)
	return nil
}

// --- next-batch command ---

var nextBatchCmd = &cobra.Command{
	Use:   "next-batch <project-id>",
	Short: "Show the top-ranked citations not yet labeled",
	Args:  cobra.ExactArgs(1),
	RunE:  runNextBatch,
}

func runNextBatch(cmd *cobra.Command, args []string) error {
	size, _ := cmd.Flags().GetInt("size")
	if size <= 0 {
		size = engineCfg.Triage.PageSize
	}

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	batch := ctrl.NextBatch(size)

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, batch)
	}
	fmt.Fprintf(out, "Iteration %d (%s)\n", batch.CurrentIteration, batch.Status)
	if len(batch.Citations) == 0 {
		fmt.Fprintln(out, "No unlabeled citations left.")
		return nil
	}
	printCitations(out, batch.Citations, 0)
	return nil
}

// --- history command ---

var historyCmd = &cobra.Command{
	Use:   "history <project-id>",
	Short: "Show the committed training iterations",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	history := ctrl.History()

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, history)
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "No iterations trained yet.")
		return nil
	}
	for _, it := range history {
		fmt.Fprintf(out, "Iteration %d  %s  by %s  agreement %.0f%%\n",
			it.Index, it.Timestamp.Format("2006-01-02 15:04"), it.TrainedBy, it.Agreement*100)
		fmt.Fprintf(out, "  relevant:   %s\n", strings.Join(it.RelevantIDs(), ", "))
		fmt.Fprintf(out, "  irrelevant: %s\n", strings.Join(it.IrrelevantIDs(), ", "))
	}
	return nil
}

func printCitations(w io.Writer, cs []types.Citation, offset int) {
	fmt.Fprintf(w, "%-4s  %-16s  %-6s  %-10s  %s\n", "Rank", "ID", "Score", "Class", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, c := range cs {
		fmt.Fprintf(w, "%-4d  %-16s  %.4f  %-10s  %s\n",
			offset+i+1, truncate(c.ID, 16), c.Score, c.Classification(), truncate(c.Title, 56))
	}
}

func init() {
	pageCmd.Flags().Int("size", 0, "citations per page (default: triage.page_size)")
	pageCmd.Flags().Bool("json", false, "output as JSON")

	listCmd.Flags().String("sort", "desc", "score order: desc or asc")
	listCmd.Flags().Int("limit", 0, "maximum citations to list (0 for all)")
	listCmd.Flags().Bool("json", false, "output as JSON")

	nextBatchCmd.Flags().Int("size", 0, "batch size (default: triage.page_size)")
	nextBatchCmd.Flags().Bool("json", false, "output as JSON")

	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(pageCmd, listCmd, nextBatchCmd, historyCmd)
}
