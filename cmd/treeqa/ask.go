package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"labsos-backend/application/ports"
	"labsos-backend/application/queries"
	"labsos-backend/infrastructure/config"
	"labsos-backend/infrastructure/di"
)

var (
	askTree        string
	askFixture     string
	askToken       string
	askHistoryFile string
	askFormat      string
	askEcho        bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question about one tree",
	Long: `Answer a question about one tree.

Without GOOGLE_API_KEY the query is embedded with the offline hashing
embedder and, with --echo, answered by listing the selected nodes.

Examples:
  treeqa ask --fixture workspace.yaml --tree <id> --echo "list all steps"
  treeqa ask --tree <id> --token "$JWT" --format=human "what is step 3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askTree, "tree", "", "Tree ID (required)")
	askCmd.Flags().StringVar(&askFixture, "fixture", "", "YAML fixture to read trees from instead of Supabase")
	askCmd.Flags().StringVar(&askToken, "token", "", "Access token for private trees")
	askCmd.Flags().StringVar(&askHistoryFile, "history", "", "JSON file with prior messages [{role, content}]")
	askCmd.Flags().StringVar(&askFormat, "format", "json", "Output format (json, human)")
	askCmd.Flags().BoolVar(&askEcho, "echo", false, "Answer offline by listing the context nodes")
	_ = askCmd.MarkFlagRequired("tree")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if askFixture != "" {
		cfg.FixtureFile = askFixture
	}
	if askEcho {
		cfg.EchoAnswers = true
	}
	// Keep stdout clean for the result
	cfg.EnableMetrics = false
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}

	history, err := readHistory(askHistoryFile)
	if err != nil {
		return err
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	out, err := container.QueryBus.Ask(ctx, queries.AISearchQuery{
		TreeID:  askTree,
		Query:   strings.Join(args, " "),
		History: queries.NormalizeHistory(history),
		Token:   askToken,
	})
	if err != nil {
		return err
	}
	result, ok := out.(*queries.AISearchResult)
	if !ok {
		return fmt.Errorf("unexpected result type %T", out)
	}

	if askFormat == "human" {
		return printHuman(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readHistory(path string) ([]ports.ChatMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var history []ports.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return history, nil
}

func printHuman(w io.Writer, r *queries.AISearchResult) error {
	if r == nil {
		return errors.New("empty result")
	}
	fmt.Fprintf(w, "Tree:     %s\n", r.TreeName)
	fmt.Fprintf(w, "Strategy: %s (%s)\n", r.Metadata.ContextStrategy, r.Metadata.QueryClassification)
	fmt.Fprintf(w, "Context:  %d of %d nodes, est. $%.6f\n\n", r.Metadata.ContextNodes, r.Metadata.TotalNodes, r.Metadata.EstimatedCost)

	switch {
	case r.Answer != nil:
		fmt.Fprintln(w, *r.Answer)
	case r.AnswerError != nil:
		fmt.Fprintf(w, "No answer: %s\n", *r.AnswerError)
	}
	return nil
}
