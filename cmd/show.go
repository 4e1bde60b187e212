package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"ccview/internal/export"
	"ccview/internal/transcript"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	showThinking bool
	showErrors   bool
	showRaw      bool
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showThinking, "thinking", false, "include thinking blocks")
	showCmd.Flags().BoolVar(&showErrors, "errors", false, "list lines that failed to parse")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print the raw JSONL log")
}

var showCmd = &cobra.Command{
	Use:   "show <project-id> <conversation-id>",
	Short: "Print a conversation with its tool calls and stats",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := openCorpus()
		if showRaw {
			data, err := c.ReadConversation(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		conv, err := c.LoadConversation(args[0], args[1])
		if err != nil {
			return err
		}

		printStats(args[1], conv)
		for _, m := range conv.Messages {
			printMessage(m)
		}

		if len(conv.Errors) > 0 {
			fmt.Printf("%d line(s) could not be parsed", len(conv.Errors))
			if !showErrors {
				fmt.Print(" (use --errors to list them)")
			}
			fmt.Println()
			if showErrors {
				for _, e := range conv.Errors {
					fmt.Printf("  line %d: %s\n    %s\n", e.Line, e.Message, e.Content)
				}
			}
		}
		return nil
	},
}

func printStats(id string, conv *transcript.Conversation) {
	st := conv.Stats
	fmt.Printf("Conversation: %s\n", id)
	fmt.Printf("Session:      %s\n", conv.SessionID)
	fmt.Printf("Messages:     %d (%d user / %d assistant)\n", st.TotalMessages, st.UserMessages, st.AssistantMessages)
	fmt.Printf("Tokens:       %s in / %s out, cache hit rate %.0f%%\n",
		humanize.Comma(st.TotalInputTokens), humanize.Comma(st.TotalOutputTokens), st.CacheHitRate*100)
	if !st.StartTime.IsZero() {
		fmt.Printf("Started:      %s (%s)\n", st.StartTime.Local().Format("2006-01-02 15:04:05"), export.FormatDuration(st.TotalDuration))
	}
	if st.Model != "" {
		fmt.Printf("Model:        %s\n", st.Model)
	}
	if st.TotalToolUses > 0 {
		names := make([]string, 0, len(st.ToolUseCounts))
		for name := range st.ToolUseCounts {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return st.ToolUseCounts[names[i]] > st.ToolUseCounts[names[j]] ||
				(st.ToolUseCounts[names[i]] == st.ToolUseCounts[names[j]] && names[i] < names[j])
		})
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s×%d", name, st.ToolUseCounts[name]))
		}
		fmt.Printf("Tools:        %s\n", strings.Join(parts, ", "))
	}
	fmt.Println()
}

func printMessage(m transcript.Message) {
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = "[" + m.Timestamp.Local().Format("15:04:05") + "] "
	}

	if m.Role == transcript.RoleUser {
		fmt.Printf("%sUSER\n%s\n\n", ts, m.Text)
		return
	}

	fmt.Printf("%sCLAUDE\n", ts)
	for _, b := range m.Blocks {
		switch b.Kind {
		case transcript.KindThinking:
			if showThinking {
				fmt.Printf("  (thinking) %s\n", b.Content)
			}
		case transcript.KindText:
			fmt.Println(b.Content)
		case transcript.KindToolUse:
			fmt.Printf("  %s %s %s\n", export.ToolEmoji(b.ToolName), b.ToolName, truncateShow(oneLine(b.Content), 120))
			if r := b.Result; r != nil {
				marker := "→"
				if r.IsError {
					marker = "✗"
				}
				if r.Diff != nil {
					fmt.Printf("    %s %s (+%d -%d)\n", marker, r.Diff.FilePath, r.Diff.Additions, r.Diff.Deletions)
				} else {
					fmt.Printf("    %s %s\n", marker, truncateShow(oneLine(r.Content), 200))
				}
			}
		}
	}
	fmt.Println()
}
