package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
)

var (
	collectDays   int
	collectThemes []string
)

func init() {
	collectCmd.Flags().IntVar(&collectDays, "days", 1, "How many days back to collect")
	collectCmd.Flags().StringSliceVar(&collectThemes, "theme", nil, "Theme to collect (repeatable, default: configured themes)")
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect and store news once",
	Long: `Fetch news for each theme from the news source and store new articles.

Examples:
  newsrag collect
  newsrag collect --days 7 --theme 반도체 --theme AI`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			report, err := application.Pipeline().CollectAndStore(ctx, collectThemes, collectDays)
			if err != nil {
				return fmt.Errorf("collect news: %w", err)
			}

			if !humanOutput {
				return outputJSON(report)
			}
			fmt.Printf("Stored %d of %d fetched articles (%s to %s)\n", report.Total, report.Fetched, report.DateFrom, report.DateTo)
			for _, tc := range report.PerTheme {
				fmt.Printf("  %-12s %4d / %d\n", tc.Theme, tc.Stored, tc.Fetched)
			}
			return nil
		})
	},
}
