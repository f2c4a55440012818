package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/daemon"
	"github.com/daybook-app/daybook/internal/dashboard"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Watch the inbox and keep the remote store in sync",
	Long: `Run the background sync loop: watch the inbox directory for new task
exports, migrate them as they settle, and replay pending writes on an
interval so offline edits reach the remote store once connectivity returns.

With --dashboard the daemon also serves the WebSocket dashboard, pushing
migration and replay events to connected clients.

Example usage:
  daybook daemon                       # sync loop only
  daybook daemon --dashboard --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		env, err := openEnv("[daemon] ")
		if err != nil {
			return err
		}
		defer env.Close()

		inbox, err := inboxDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(inbox, 0o755); err != nil {
			return fmt.Errorf("create inbox %s: %w", inbox, err)
		}

		config := daemon.DefaultConfig()
		config.Logger = env.logger

		if withDashboard {
			server := dashboard.NewServer(env.coord, &dashboard.Config{
				Port:   port,
				Logger: env.logger,
			})
			if err := server.Start(); err != nil {
				return err
			}
			defer func() {
				if err := server.Stop(); err != nil {
					env.logger.Printf("Dashboard shutdown error: %v", err)
				}
			}()
			config.Events = dashboard.NewHandler(server, env.logger)
			fmt.Printf("Dashboard: http://%s\n", server.GetAddr())
		}

		d, err := daemon.New(env.tasks, env.coord, inbox, config)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Watching inbox: %s (Ctrl+C to stop)\n", inbox)
		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port")
	rootCmd.AddCommand(daemonCmd)
}
