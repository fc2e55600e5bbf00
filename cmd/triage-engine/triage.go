// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// --- label command ---

var labelCmd = &cobra.Command{
	Use:   "label <project-id> <relevant|irrelevant> <citation-id>...",
	Short: "Toggle labels in the current iteration's selection",
	Long: `Label toggles each citation in the selection for the current iteration.
Labeling a citation that already carries the same label removes it. A
citation cannot be relevant and irrelevant at once, and each side holds at
most the project quota.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runLabel,
}

func runLabel(cmd *cobra.Command, args []string) error {
	label := types.Label(strings.ToLower(args[1]))
	if label != types.LabelRelevant && label != types.LabelIrrelevant {
		return fmt.Errorf("label must be %s or %s, got %q", types.LabelRelevant, types.LabelIrrelevant, args[1])
	}

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	ctrl, err := projects.Get(ctx, args[0])
	if err != nil {
		return err
	}
	sess := sessionFor(cmd)
	out := cmd.OutOrStdout()
	for _, id := range args[2:] {
		if err := ctrl.Toggle(ctx, sess, id, label); err != nil {
			return err
		}
		fmt.Fprintf(out, "  toggled %s %s\n", label, id)
	}
	printProgress(out, ctrl.Progress())
	return nil
}

// --- train command ---

var trainCmd = &cobra.Command{
	Use:   "train <project-id>",
	Short: "Rescore the project from the current selection",
	Long: `Train runs one iteration: the scoring model learns from the labeled
selection and rescores every citation. Labeled citations are pinned to 1
(relevant) or 0 (irrelevant). Without --relevant and --irrelevant the
pending selection is used; with them, the given ids replace it.

A failed or timed out run leaves the project unchanged and keeps the
selection, so the same command can be retried.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	relevant, _ := cmd.Flags().GetStringSlice("relevant")
	irrelevant, _ := cmd.Flags().GetStringSlice("irrelevant")

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	ctrl, err := projects.Get(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res, err := ctrl.TrainWith(ctx, sessionFor(cmd), relevant, irrelevant)
	if err != nil {
		printTrainError(out, err)
		return err
	}

	fmt.Fprintf(out, "Trained iteration %d (agreement %.0f%%)\n", res.Record.Index, res.Record.Agreement*100)
	if res.Status == types.StatusComplete {
		fmt.Fprintln(out, "Triage complete. Export the final ranking with: triage-engine export", ctrl.ID())
		return nil
	}
	fmt.Fprintf(out, "Now on iteration %d of %d\n", res.Iteration, ctrl.Progress().MaxIterations)
	return nil
}

func printTrainError(w io.Writer, err error) {
	var failure *triage.TrainingFailure
	if errors.As(err, &failure) {
		fmt.Fprintf(w, "Iteration %d did not commit; selection kept for retry.\n", failure.Iteration)
		fmt.Fprintf(w, "  relevant:   %s\n", strings.Join(failure.RelevantIDs, ", "))
		fmt.Fprintf(w, "  irrelevant: %s\n", strings.Join(failure.IrrelevantIDs, ", "))
		return
	}
	var invalid *triage.ValidationError
	if errors.As(err, &invalid) {
		for _, p := range invalid.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

// --- complete command ---

var completeCmd = &cobra.Command{
	Use:   "complete <project-id>",
	Short: "Finish triage before the iteration limit",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	ctrl, err := projects.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if err := ctrl.Complete(ctx, sessionFor(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Triage of %s complete after %d iterations\n", ctrl.ID(), ctrl.Progress().Iterations)
	return nil
}

func init() {
	trainCmd.Flags().StringSlice("relevant", nil, "citation ids to train as relevant (comma-separated)")
	trainCmd.Flags().StringSlice("irrelevant", nil, "citation ids to train as irrelevant (comma-separated)")

	rootCmd.AddCommand(labelCmd, trainCmd, completeCmd)
}
