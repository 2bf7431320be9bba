package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-tracker/internal/app"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

var (
	runProvider  string
	runConfig    string
	runLocations []string
	runProducts  []string
	runTemplate  string
	runPersist   bool
	runAnswers   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one provider batch over the tracking matrix",
	Example: `  tracker run --provider chatgpt
  tracker run --provider gemini --location Winnipeg --product auto --persist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var opts []app.Option
		if !runPersist {
			opts = append(opts, app.WithoutDatabase())
		}
		a, err := app.New(ctx, cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Tracker.RunBatch(ctx, services.BatchRequest{
			Provider:       runProvider,
			ConfigPath:     runConfig,
			Locations:      runLocations,
			Products:       runProducts,
			PromptTemplate: runTemplate,
		})
		if err != nil {
			return err
		}

		if runPersist {
			if err := a.Tracker.Persist(ctx, res, time.Now()); err != nil {
				return fmt.Errorf("persist batch %s: %w", res.BatchID, err)
			}
		}

		if !runAnswers {
			res.Answers = nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "AI platform: chatgpt, gemini, perplexity or claude")
	runCmd.Flags().StringVar(&runConfig, "config", "", "tracking file (default from TRACKER_TRACKING_PATH)")
	runCmd.Flags().StringArrayVar(&runLocations, "location", nil, "override locations (repeatable)")
	runCmd.Flags().StringArrayVar(&runProducts, "product", nil, "override products (repeatable)")
	runCmd.Flags().StringVar(&runTemplate, "prompt-template", "", "prompt with {keyword} and {location} placeholders")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "store daily records and the source summary")
	runCmd.Flags().BoolVar(&runAnswers, "answers", false, "include raw answer text in the output")
	_ = runCmd.MarkFlagRequired("provider")
	rootCmd.AddCommand(runCmd)
}
