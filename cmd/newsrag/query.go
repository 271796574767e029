package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
	"NewsRAG/internal/usecase"
)

var (
	queryN           int
	queryMinScore    float64
	queryDiversity   bool
	queryDaysAgo     int
	queryFilterTheme bool
)

func init() {
	queryCmd.Flags().IntVar(&queryN, "n", usecase.DefaultNResults, "Maximum number of results (default: retrieval.nResults)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", usecase.DefaultMinRelevanceScore, "Minimum relevance score (default: retrieval.minRelevanceScore)")
	queryCmd.Flags().BoolVar(&queryDiversity, "diversity", false, "Issue a second, broader query")
	queryCmd.Flags().IntVar(&queryDaysAgo, "days-ago", 0, "Demote articles older than this many days (0 = off)")
	queryCmd.Flags().BoolVar(&queryFilterTheme, "filter-theme", false, "Demote articles tagged with other themes")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query CATEGORY...",
	Short: "Rank stored news for investment categories",
	Long: `Rank stored news for one or more investment categories.

Examples:
  newsrag query 반도체
  newsrag query 반도체 AI --n 10 --diversity --days-ago 7 --filter-theme`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			query := application.Engine().DefaultQuery(args...)
			if cmd.Flags().Changed("n") {
				query.NResults = queryN
			}
			if cmd.Flags().Changed("min-score") {
				query.MinRelevanceScore = queryMinScore
			}
			query.AddDiversity = queryDiversity
			query.DaysAgo = queryDaysAgo
			query.FilterByTheme = queryFilterTheme

			results, err := application.Engine().GetNewsData(ctx, query)
			if err != nil {
				return err
			}

			if !humanOutput {
				return outputJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No relevant news")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%.3f] %s (%s, %s)\n", i+1, r.RelevanceScore, r.Title, r.Source, r.PublishedDate)
			}
			return nil
		})
	},
}
