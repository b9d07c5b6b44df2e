package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labsos-backend/infrastructure/config"
	"labsos-backend/pkg/auth"
)

var (
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign an access token with the configured JWT secret",
	Long: `Sign an access token for a user, for use with --token against a
fixture or a development project. Requires SUPABASE_JWT_SECRET.

Example:
  treeqa ask --fixture workspace.yaml --tree <id> --token "$(treeqa token <user-id>)" "list all steps"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("SUPABASE_JWT_SECRET is not set")
		}
		v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		if err != nil {
			return err
		}
		token, err := v.IssueToken(args[0], tokenEmail, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
