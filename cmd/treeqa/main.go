// Command treeqa asks questions about experiment trees from the terminal,
// against a YAML fixture or a Supabase project, through the same pipeline
// the API serves.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "treeqa",
	Short: "Ask questions about experiment trees",
	Long: `treeqa runs the ai-search pipeline locally.

Configuration comes from the same environment variables and CONFIG_FILE as
the API server. Flags override them for one run.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
