package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-tracker/internal/api"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Auth.Validate(); err != nil {
			return err
		}
		tok, err := api.GenerateToken(tokenSubject, tokenRole, []byte(cfg.Auth.JWTSecret), tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
