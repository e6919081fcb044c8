package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

var (
	anaOutputPath string
	anaJSON       bool
	anaTopN       int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Summarize a sales export: totals, rankings, trend and insights",
	Example: `  salesloom analyze orders_export.csv
  salesloom analyze sales.xlsx --top 5 --output report.md
  salesloom analyze orders.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session.Open(args[0], loadOptions())
		if err != nil {
			return err
		}
		rep := s.Report(anaTopN)

		var out []byte
		if anaJSON {
			if out, err = utils.PrettyJSON(rep); err != nil {
				return err
			}
			out = append(out, '\n')
		} else {
			out = []byte(rep.Markdown())
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis of %d rows to %s\n", s.Dataset.Len(), anaOutputPath)
			printWarnings(cmd.ErrOrStderr(), s.Warnings)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the report as JSON")
	analyzeCmd.Flags().IntVar(&anaTopN, "top", 10, "number of entries in each ranking")
}
