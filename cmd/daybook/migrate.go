package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/source"
	"github.com/daybook-app/daybook/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "sync",
	Short:   "Migrate inbox task exports into the stores",
	Long: `Read every JSON export in the inbox directory and migrate its task
records into the local store, syncing to the remote store as connectivity
allows.

Migration is idempotent: records whose id or text already exists are skipped,
so re-running after a partial failure only imports what is missing. Writes
that cannot reach the remote store are left as pending markers and replayed
later (see "daybook sync").

Example usage:
  daybook migrate                      # migrate the configured inbox
  daybook migrate --inbox ./exports    # migrate a one-off directory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv("[migrate] ")
		if err != nil {
			return err
		}
		defer env.Close()

		inbox, err := inboxDir()
		if err != nil {
			return err
		}
		records, err := source.NewDirSource(inbox, env.logger).Load(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println(ui.RenderMuted("Inbox is empty, nothing to migrate"))
			return nil
		}

		result, err := env.tasks.MigrateBatch(cmd.Context(), records)
		if err != nil {
			return err
		}

		fmt.Println(ui.HeaderStyle.Render("Migration"))
		fmt.Printf("  %s migrated, %s skipped, %s errored\n",
			ui.RenderPass(fmt.Sprintf("%d", result.Migrated)),
			ui.RenderMuted(fmt.Sprintf("%d", result.Skipped)),
			ui.RenderFail(fmt.Sprintf("%d", result.Errored)))
		for section, tally := range result.BySection {
			fmt.Printf("  %s: %d migrated, %d skipped, %d errored\n",
				ui.RenderAccent(string(section)), tally.Migrated, tally.Skipped, tally.Errored)
		}
		for _, recordErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s %v\n", ui.RenderFail("error:"), recordErr)
		}

		if pending, err := env.coord.PendingCount(); err == nil && pending > 0 {
			fmt.Println(ui.RenderWarn(fmt.Sprintf("%d writes pending remote sync", pending)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
