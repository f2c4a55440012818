package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Replay pending writes to the remote store",
	Long: `Replay every write that was deferred while the remote store was
unreachable, then report what is still pending.

Replay is safe to run at any time: entities that already synced are skipped,
and failures simply stay pending for the next run.

Example usage:
  daybook sync             # replay and report
  daybook sync --status    # report only, replay nothing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")

		env, err := openEnv("[sync] ")
		if err != nil {
			return err
		}
		defer env.Close()

		if !statusOnly {
			synced, err := env.coord.ReplayPending(cmd.Context())
			if err != nil {
				return err
			}
			if synced > 0 {
				fmt.Printf("%s writes replayed\n", ui.RenderPass(fmt.Sprintf("%d", synced)))
			}
		}

		pending, err := env.coord.Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println(ui.RenderPass("Everything is synced"))
			return nil
		}

		fmt.Println(ui.RenderWarn(fmt.Sprintf("%d writes pending:", len(pending))))
		for _, marker := range pending {
			line := fmt.Sprintf("  %s (%s)", marker.Key, marker.Op)
			if marker.Error != "" {
				line += " " + ui.RenderMuted(marker.Error)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("status", false, "Show pending writes without replaying")
	rootCmd.AddCommand(syncCmd)
}
