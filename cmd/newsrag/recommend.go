package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
	"NewsRAG/internal/usecase"
)

var (
	recommendTheme      string
	recommendPortfolios int
	recommendStocks     int
)

func init() {
	recommendCmd.Flags().StringVar(&recommendTheme, "theme", "", "Investment theme (required)")
	recommendCmd.Flags().IntVar(&recommendPortfolios, "portfolios", 1, "Number of portfolios to suggest")
	recommendCmd.Flags().IntVar(&recommendStocks, "stocks", 5, "Stocks per portfolio")
	_ = recommendCmd.MarkFlagRequired("theme")
	rootCmd.AddCommand(recommendCmd)
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Ask the chat model for portfolios based on recent news",
	Long: `Retrieve recent news for a theme and ask the configured chat model for
portfolio suggestions. Requires OPENAI_API_KEY or chatgpt.apiKey.

Examples:
  newsrag recommend --theme 반도체 --portfolios 2 --stocks 4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			rec, err := application.Recommender().Recommend(ctx, usecase.RecommendRequest{
				Theme:              recommendTheme,
				PortfolioCount:     recommendPortfolios,
				StocksPerPortfolio: recommendStocks,
			})
			if err != nil {
				return err
			}

			if !humanOutput {
				return outputJSON(rec)
			}
			fmt.Printf("Based on %d news items:\n\n", len(rec.News))
			if len(rec.Portfolios) == 0 {
				fmt.Println(rec.Raw)
				return nil
			}
			for _, p := range rec.Portfolios {
				fmt.Printf("%s\n  %s\n", p.Name, p.Description)
				for _, s := range p.Stocks {
					fmt.Printf("  %-8s %-20s %5.1f%%\n", s.Ticker, s.Name, s.Allocation)
				}
				fmt.Println()
			}
			return nil
		})
	},
}
