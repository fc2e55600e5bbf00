// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/keywords"
	"github.com/pdiddy/triage-engine/pkg/types"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Suggest and record include/exclude keywords",
	Long: `Keywords manages the include and exclude keyword lists recorded with a
project. The lists are kept for the reviewer's search strategy and export;
they do not change scores or ranking.`,
}

var keywordsSuggestCmd = &cobra.Command{
	Use:   "suggest <project-id>",
	Short: "Suggest keywords from the project's titles and abstracts",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordsSuggest,
}

func runKeywordsSuggest(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("max")
	save, _ := cmd.Flags().GetBool("save")

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	kf, err := projects.SuggestKeywords(ctx, args[0], limit)
	if err != nil {
		return err
	}
	if save {
		if kf, err = projects.SetKeywords(ctx, sessionFor(cmd), args[0], kf); err != nil {
			return err
		}
	}
	return printKeywords(cmd, kf)
}

var keywordsSetCmd = &cobra.Command{
	Use:   "set <project-id>",
	Short: "Record the project's keyword lists",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordsSet,
}

func runKeywordsSet(cmd *cobra.Command, args []string) error {
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	projects, closeFn, err := openRegistry(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	kf, err := projects.SetKeywords(context.Background(), sessionFor(cmd), args[0],
		types.KeywordFilter{Include: include, Exclude: exclude})
	if err != nil {
		return err
	}
	return printKeywords(cmd, kf)
}

func printKeywords(cmd *cobra.Command, kf types.KeywordFilter) error {
	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, kf)
	}
	printKeywordList(out, "Include", kf.Include)
	printKeywordList(out, "Exclude", kf.Exclude)
	return nil
}

func printKeywordList(w io.Writer, label string, words []string) {
	if len(words) == 0 {
		fmt.Fprintf(w, "%s: (none)\n", label)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(words, ", "))
}

func init() {
	keywordsSuggestCmd.Flags().Int("max", keywords.DefaultMax, "maximum number of suggested keywords")
	keywordsSuggestCmd.Flags().Bool("save", false, "record the suggestion as the project's keywords")
	keywordsSuggestCmd.Flags().Bool("json", false, "output as JSON")

	keywordsSetCmd.Flags().StringSlice("include", nil, "keywords to include (comma-separated)")
	keywordsSetCmd.Flags().StringSlice("exclude", nil, "keywords to exclude (comma-separated)")
	keywordsSetCmd.Flags().Bool("json", false, "output as JSON")

	keywordsCmd.AddCommand(keywordsSuggestCmd, keywordsSetCmd)
	rootCmd.AddCommand(keywordsCmd)
}
