package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/salesloom-cli/internal/usage"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

var (
	usageJSON        bool
	usageResetDaily  bool
	usageResetWeekly bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show or reset AI call quotas",
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show today's and this week's AI calls and projected cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := newGovernor().Stats()
		if usageJSON {
			b, err := utils.PrettyJSON(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		printUsage(cmd.OutOrStdout(), st)
		return nil
	},
}

var usageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset usage counters (testing only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !usageResetDaily && !usageResetWeekly {
			return fmt.Errorf("choose --daily, --weekly or both")
		}
		gov := newGovernor()
		if usageResetDaily {
			gov.ResetDaily()
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Reset today's count")
		}
		if usageResetWeekly {
			gov.ResetWeekly()
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Reset this week's count")
		}
		return nil
	},
}

func printUsage(out io.Writer, st usage.Stats) {
	fmt.Fprintf(out, "Today:     %d / %d calls (%.1f%%), %d remaining\n", st.DailyCalls, st.DailyLimit, st.DailyPercent(), st.DailyRemaining)
	fmt.Fprintf(out, "This week: %d / %d calls, %d remaining\n", st.WeeklyCalls, st.WeeklyLimit, st.WeeklyRemaining)
	fmt.Fprintf(out, "Estimated cost: $%.2f this week, $%.2f per month\n", st.EstimatedCostWeek, st.EstimatedCostMonth)
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageShowCmd)
	usageCmd.AddCommand(usageResetCmd)
	usageShowCmd.Flags().BoolVar(&usageJSON, "json", false, "emit stats as JSON")
	usageResetCmd.Flags().BoolVar(&usageResetDaily, "daily", false, "reset today's count")
	usageResetCmd.Flags().BoolVar(&usageResetWeekly, "weekly", false, "reset this week's count")
}
