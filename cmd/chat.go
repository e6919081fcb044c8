package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/usage"
)

var (
	chatTranscript string
	chatShowCode   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Ask questions about a sales export interactively",
	Long: `Starts an interactive session over one file. Type a question and press Enter.
Commands: /summary prints the headline figures, /usage shows today's quota,
/save [path] exports the chat history, /quit leaves.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session.Open(args[0], loadOptions())
		if err != nil {
			return err
		}
		gov := newGovernor()
		asst, err := newAssistant(gov)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := background(cmd.Context())
		tr := session.NewTranscript(s)

		fmt.Fprintf(out, "✓ Loaded %s\n", s)
		printWarnings(cmd.ErrOrStderr(), s.Warnings)

		in := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				break
			}
			line := strings.TrimSpace(in.Text())
			switch {
			case line == "":
				continue
			case line == "/quit" || line == "/exit":
				return saveTranscript(cmd, tr, chatTranscript)
			case line == "/summary":
				sum := s.Analyzer.SummaryStats()
				fmt.Fprintf(out, "%d orders, %d products, %d days\n", sum.OrderCount, sum.UniqueProducts, sum.DateRangeDays)
				continue
			case line == "/usage":
				printUsage(out, gov.Stats())
				continue
			case strings.HasPrefix(line, "/save"):
				path := strings.TrimSpace(strings.TrimPrefix(line, "/save"))
				if path == "" {
					path = defaultTranscriptPath(s)
				}
				if err := tr.WriteFile(path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
				} else {
					fmt.Fprintf(out, "✓ Saved %d answers to %s\n", tr.Len(), path)
				}
				continue
			}

			reply, err := asst.Ask(ctx, s, line)
			if err != nil {
				var ce *ai.CredentialError
				var qe *usage.QuotaExceededError
				if errors.As(err, &ce) || errors.As(err, &qe) {
					_ = saveTranscript(cmd, tr, chatTranscript)
					return err
				}
				if ctx.Err() != nil {
					break
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
				continue
			}
			tr.Add(*reply)
			if err := printReply(cmd, reply, chatShowCode, false); err != nil {
				return err
			}
		}
		if err := in.Err(); err != nil {
			return err
		}
		return saveTranscript(cmd, tr, chatTranscript)
	},
}

func defaultTranscriptPath(s *session.Session) string {
	base := strings.TrimSuffix(s.Name, filepath.Ext(s.Name))
	return fmt.Sprintf("%s-chat-%s.md", base, time.Now().Format("20060102-150405"))
}

func saveTranscript(cmd *cobra.Command, tr *session.Transcript, path string) error {
	if path == "" || tr.Len() == 0 {
		return nil
	}
	if err := tr.WriteFile(path); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved chat history to %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatTranscript, "transcript", "", "save the chat history here on exit (.md or .json)")
	chatCmd.Flags().BoolVar(&chatShowCode, "show-code", false, "print the script behind each answer")
}
