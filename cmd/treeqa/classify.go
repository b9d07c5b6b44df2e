package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labsos-backend/domain/search"
)

type classifyOutput struct {
	Query               string                `json:"query"`
	Classification      search.Classification `json:"classification"`
	RequiresFullContext bool                  `json:"requires_full_context"`
	IsSimple            bool                  `json:"is_simple"`
	MatchedRules        []string              `json:"matched_rules"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify <query>",
	Short: "Show how a query is classified",
	Long: `Show how a query is classified and which rules matched.

Examples:
  treeqa classify "what is step 3"
  treeqa classify compare the two normalisation methods`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")
	c := search.NewRuleClassifier()

	full, err := c.RequiresFullContext(ctx, query)
	if err != nil {
		return err
	}
	simple, err := c.IsSimple(ctx, query)
	if err != nil {
		return err
	}
	label, err := search.Classify(ctx, c, query)
	if err != nil {
		return err
	}

	out := classifyOutput{
		Query:               query,
		Classification:      label,
		RequiresFullContext: full,
		IsSimple:            simple,
		MatchedRules:        c.MatchedRules(query),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
