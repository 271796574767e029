package main

import (
	"context"

	"github.com/spf13/cobra"

	"NewsRAG/internal/app"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the startup backfill and the daily collection schedule",
	Long: `Run the initial backfill in the background and collect the default themes
every day on the configured cron schedule, sweeping expired documents after
each run. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.Application) error {
			return application.Run(ctx)
		})
	},
}
