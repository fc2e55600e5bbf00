// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export the ranked citations",
	Long: `Export writes the project's citations sorted by descending score. The
default CSV has the columns ID, Title, Relevance Score, and Classification
(Relevant when the score is at least 0.5). --format yaml or json writes a
report that also includes the training history.

Export works in any state; once triage is complete the ranking is final.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl, err := projects.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.New(logger).Write(&buf, format, sessionFor(cmd), ctrl.Snapshot()); err != nil {
		return err
	}

	if output == "" || output == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d citations to %s\n", ctrl.Progress().TotalCitations, output)
	return nil
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format: csv, yaml, json")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(exportCmd)
}
