package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "report",
	Short:   "Start the real-time sync dashboard",
	Long: `Start a WebSocket dashboard server for observing sync state.

WebSocket messages include:
- migration_complete: an inbox migration pass finished
- replay_complete: a pending-write replay pass finished
- stats: running totals and the current pending-write count

HTTP endpoints:
  /health    server status and client count
  /stats     pending-write count
  /ws        WebSocket endpoint

Example usage:
  daybook dashboard                # default port 8080
  daybook dashboard --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		env, err := openEnv("[dashboard] ")
		if err != nil {
			return err
		}
		defer env.Close()

		server := dashboard.NewServer(env.coord, &dashboard.Config{
			Port:   port,
			Logger: env.logger,
		})
		if err := server.Start(); err != nil {
			return err
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(dashboardCmd)
}
