package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/app"
	"github.com/AI-Template-SDK/senso-tracker/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Track brand visibility in AI search answers",
	Long:  "Asks AI platforms for provider recommendations across products and locations, extracts brand signals and reports visibility scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		app.LoadEnv()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
