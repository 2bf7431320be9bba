package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-tracker/internal/app"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

var (
	reportMonth    string
	reportCity     bool
	reportRegion   bool
	reportProvider string
	reportMetric   string
	reportJSON     bool
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print visibility, average rank and sentiment for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportCity && reportRegion {
			return fmt.Errorf("--city and --region are mutually exclusive")
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		q := services.ScoreQuery{Month: reportMonth, Provider: reportProvider, Metric: reportMetric}
		switch {
		case reportCity:
			q.IsCity = boolPtr(true)
		case reportRegion:
			q.IsCity = boolPtr(false)
		}

		report, err := a.Reports.Scores(cmd.Context(), q)
		if err != nil {
			return err
		}
		if reportJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printScores(cmd.OutOrStdout(), report)
		return nil
	},
}

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "List tracked days for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		days, err := a.Reports.Days(cmd.Context(), reportMonth)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), days)
	},
}

func printScores(w io.Writer, r *services.ScoreReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PLATFORM\tVISIBILITY\tAVG RANK\tAVG SENTIMENT\tDAYS\n")
	fmt.Fprintf(tw, "all\t%.2f\t%s\t%s\t%d/%d\n", r.Overall.Visibility,
		fmtOpt(r.Overall.AverageRank), fmtOpt(r.Overall.AvgSentiment), r.Overall.Inputs.DistinctDays, r.DaysInMonth)

	names := make([]string, 0, len(r.Platforms))
	for name := range r.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.Platforms[name]
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%d/%d\n", name, s.Visibility,
			fmtOpt(s.AverageRank), fmtOpt(s.AvgSentiment), s.Inputs.DistinctDays, r.DaysInMonth)
	}
	tw.Flush()

	if len(r.ZeroVisibilityLocations) > 0 {
		fmt.Fprintf(w, "\nzero visibility: %v\n", r.ZeroVisibilityLocations)
	}
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func boolPtr(b bool) *bool { return &b }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{scoresCmd, daysCmd} {
		c.Flags().StringVar(&reportMonth, "month", "", "reporting month as YYYYMM")
		_ = c.MarkFlagRequired("month")
	}
	scoresCmd.Flags().BoolVar(&reportCity, "city", false, "only city-level locations")
	scoresCmd.Flags().BoolVar(&reportRegion, "region", false, "only region-level locations")
	scoresCmd.Flags().StringVar(&reportProvider, "provider", "", "restrict to one platform")
	scoresCmd.Flags().StringVar(&reportMetric, "metric", "", "total_count or competitor_1..4")
	scoresCmd.Flags().BoolVar(&reportJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(scoresCmd, daysCmd)
}
