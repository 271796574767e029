package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
)

var cleanupDays int

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Delete documents published more than this many days ago")
	rootCmd.AddCommand(cleanupCmd)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired documents",
	Long: `Delete documents whose published date is older than the retention window.
Documents without a published date are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			deleted := application.Pipeline().DeleteOldDocuments(ctx, cleanupDays)
			if !humanOutput {
				return outputJSON(map[string]int{"deleted": deleted})
			}
			fmt.Printf("Deleted %d documents\n", deleted)
			return nil
		})
	},
}
