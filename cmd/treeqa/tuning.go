package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"labsos-backend/infrastructure/config"
)

var tuningCmd = &cobra.Command{
	Use:   "tuning <file>",
	Short: "Validate a tuning file and print the effective values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tuning, err := config.LoadTuning(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tuning)
	},
}

func init() {
	rootCmd.AddCommand(tuningCmd)
}
