package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

var (
	askShowCode bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question...>",
	Short: "Ask one question about a sales export",
	Example: `  salesloom ask orders.csv "Which state brought in the most revenue?"
  salesloom ask orders.csv what was the best weekday --show-code`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session.Open(args[0], loadOptions())
		if err != nil {
			return err
		}
		asst, err := newAssistant(newGovernor())
		if err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")
		reply, err := asst.Ask(background(cmd.Context()), s, question)
		if err != nil {
			return err
		}
		return printReply(cmd, reply, askShowCode, askJSON)
	},
}

func printReply(cmd *cobra.Command, r *session.Reply, showCode, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		b, err := utils.PrettyJSON(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, r.Text)
	if r.Source == session.SourceCache {
		fmt.Fprintln(cmd.ErrOrStderr(), "(cached answer)")
	} else if r.Attempts > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "(answered after %d attempts)\n", r.Attempts)
	}
	if showCode && r.Code != "" {
		fmt.Fprintf(out, "\n```python\n%s\n```\n", r.Code)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askShowCode, "show-code", false, "print the script that produced the answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the reply as JSON")
}

// background returns ctx or a fresh context when cobra was run without one.
func background(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
