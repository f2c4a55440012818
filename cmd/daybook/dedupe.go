package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/ui"
)

var dedupeCmd = &cobra.Command{
	Use:     "dedupe",
	GroupID: "sync",
	Short:   "Remove duplicate tasks, keeping the best copy of each",
	Long: `Scan every task and remove duplicates: tasks in the same section whose
normalized texts are equal. Within each duplicate group the survivor is the
completed copy if any, otherwise the copy with the most attached detail,
otherwise the earliest created copy.

The pass converges, so running it repeatedly is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv("[dedupe] ")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.tasks.Deduplicate(cmd.Context())
		if err != nil {
			return err
		}

		if result.Removed == 0 {
			fmt.Println(ui.RenderPass(fmt.Sprintf("No duplicates among %d tasks", result.Scanned)))
			return nil
		}
		fmt.Printf("%s duplicates removed (%d scanned, %d remaining)\n",
			ui.RenderAccent(fmt.Sprintf("%d", result.Removed)), result.Scanned, result.Remaining)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}
