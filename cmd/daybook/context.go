package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/ui"
)

var contextCmd = &cobra.Command{
	Use:     "context [end-date]",
	GroupID: "report",
	Short:   "Report workload and completion over recent days",
	Long: `Summarize the last N planned days ending at the given date (default:
today): average planned hours, average completion rate, overloaded days and
how evenly work is spread.

Example usage:
  daybook context                    # last 7 days ending today
  daybook context 2024-06-04 --days 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		endDate := time.Now().Format(model.DateLayout)
		if len(args) == 1 {
			endDate = args[0]
		}

		env, err := openEnv("[context] ")
		if err != nil {
			return err
		}
		defer env.Close()

		if days < 1 {
			return fmt.Errorf("--days must be at least 1, got %d", days)
		}
		mdc, err := env.sched.LoadMultiDayContext(cmd.Context(), endDate, days-1, 0)
		if err != nil {
			return err
		}

		fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("Last %d days ending %s", days, endDate)))
		if mdc.DaysWithData == 0 {
			fmt.Println(ui.RenderMuted("No schedules in this window"))
			return nil
		}

		for _, day := range mdc.Days {
			line := fmt.Sprintf("  %s  %4.1fh planned, %3.0f%% done",
				ui.RenderAccent(day.Date), day.PlannedHours, day.CompletionRate*100)
			if day.Overloaded {
				line += "  " + ui.RenderFail("overloaded")
			} else if day.Deviant {
				line += "  " + ui.RenderWarn("uneven")
			}
			fmt.Println(line)
		}

		fmt.Printf("\n  Average: %s planned, %s completed\n",
			ui.RenderAccent(fmt.Sprintf("%.1fh/day", mdc.AvgHoursPerDay)),
			ui.RenderAccent(fmt.Sprintf("%.0f%%", mdc.AvgCompletionRate*100)))
		if mdc.UnevenDistribution {
			fmt.Println("  " + ui.RenderWarn(fmt.Sprintf(
				"Work is unevenly spread (%.1fh between lightest and heaviest day)", mdc.HoursSpread)))
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().Int("days", 7, "Number of days to include")
	rootCmd.AddCommand(contextCmd)
}
