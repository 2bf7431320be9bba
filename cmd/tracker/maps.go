package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-tracker/internal/app"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

var (
	mapsMonth     string
	mapsCity      bool
	mapsRegion    bool
	mapsJSON      bool
	mapsConfig    string
	mapsLocations []string
	mapsProducts  []string
	mapsTemplate  string
	mapsPersist   bool
)

var mapsCmd = &cobra.Command{
	Use:   "maps",
	Short: "Google Maps ranking of the brand",
}

var mapsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print average Maps rank, rating and reviews for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mapsCity && mapsRegion {
			return fmt.Errorf("--city and --region are mutually exclusive")
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var isCity *bool
		switch {
		case mapsCity:
			isCity = boolPtr(true)
		case mapsRegion:
			isCity = boolPtr(false)
		}

		rows, err := a.Reports.Maps(cmd.Context(), mapsMonth, isCity)
		if err != nil {
			return err
		}
		if mapsJSON {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		printMaps(cmd.OutOrStdout(), rows)
		return nil
	},
}

var mapsCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search Google Places for every product and location",
	Example: `  tracker maps collect
  tracker maps collect --location Brandon --product home --persist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var opts []app.Option
		if !mapsPersist {
			opts = append(opts, app.WithoutDatabase())
		}
		a, err := app.New(ctx, cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Maps.Collect(ctx, services.MapsRequest{
			ConfigPath:    mapsConfig,
			Locations:     mapsLocations,
			Products:      mapsProducts,
			QueryTemplate: mapsTemplate,
		})
		if err != nil {
			return err
		}
		if mapsPersist {
			if err := a.Maps.Persist(ctx, res, time.Now()); err != nil {
				return fmt.Errorf("persist maps batch %s: %w", res.BatchID, err)
			}
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func printMaps(w io.Writer, rows []models.MapsSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "LOCATION\tPRODUCT\tAVG RANK\tAVG RATING\tAVG REVIEWS\tDAYS\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", r.Location, r.Product,
			fmtOpt(r.AvgRank), fmtOpt(r.AvgRating), fmtOpt(r.AvgReviews), r.Days)
	}
	tw.Flush()
}

func init() {
	mapsReportCmd.Flags().StringVar(&mapsMonth, "month", "", "reporting month as YYYYMM")
	_ = mapsReportCmd.MarkFlagRequired("month")
	mapsReportCmd.Flags().BoolVar(&mapsCity, "city", false, "only city-level locations")
	mapsReportCmd.Flags().BoolVar(&mapsRegion, "region", false, "only region-level locations")
	mapsReportCmd.Flags().BoolVar(&mapsJSON, "json", false, "print JSON instead of a table")

	mapsCollectCmd.Flags().StringVar(&mapsConfig, "config", "", "tracking file (default from TRACKER_TRACKING_PATH)")
	mapsCollectCmd.Flags().StringArrayVar(&mapsLocations, "location", nil, "override locations (repeatable)")
	mapsCollectCmd.Flags().StringArrayVar(&mapsProducts, "product", nil, "override products (repeatable)")
	mapsCollectCmd.Flags().StringVar(&mapsTemplate, "query-template", "", "query with {keyword} and {location} placeholders")
	mapsCollectCmd.Flags().BoolVar(&mapsPersist, "persist", false, "store one maps row per search")

	mapsCmd.AddCommand(mapsReportCmd, mapsCollectCmd)
	rootCmd.AddCommand(mapsCmd)
}
