package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored documents by date and theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			diag, err := application.Pipeline().Diagnose(ctx)
			if err != nil {
				return err
			}

			if !humanOutput {
				return outputJSON(diag)
			}
			fmt.Printf("%d documents (%d undated)\n\nBy date:\n", diag.Total, diag.Undated)
			for _, k := range sortedKeys(diag.ByDate) {
				fmt.Printf("  %s %5d\n", k, diag.ByDate[k])
			}
			fmt.Println("\nBy theme:")
			for _, k := range sortedKeys(diag.ByTheme) {
				fmt.Printf("  %-12s %5d\n", k, diag.ByTheme[k])
			}
			return nil
		})
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
