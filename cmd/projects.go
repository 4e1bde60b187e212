package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listJSON bool

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(conversationsCmd)

	projectsCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	conversationsCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that have conversation logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := openCorpus().ListProjects(cmd.Context())
		if err != nil {
			return err
		}

		if listJSON {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Printf("No projects found in %s\n", cfg.Corpus.ProjectsDir)
			return nil
		}

		fmt.Printf("%-24s %-6s %-16s %s\n", "NAME", "CONVS", "MODIFIED", "ID")
		fmt.Println("─────────────────────────────────────────────────────────────────")
		for _, p := range projects {
			fmt.Printf("%-24s %-6d %-16s %s\n",
				truncateShow(p.Name, 24),
				p.ConversationCount,
				humanize.Time(p.LastModified),
				p.ID,
			)
		}
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations <project-id>",
	Aliases: []string{"convs"},
	Short:   "List the conversations of a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		convs, err := openCorpus().ListConversations(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if listJSON {
			return printJSON(convs)
		}
		if len(convs) == 0 {
			fmt.Println("No conversations in this project")
			return nil
		}

		fmt.Printf("%-38s %-5s %-9s %-16s %s\n", "ID", "MSGS", "SIZE", "MODIFIED", "FIRST MESSAGE")
		fmt.Println("──────────────────────────────────────────────────────────────────────────────────────")
		for _, c := range convs {
			fmt.Printf("%-38s %-5d %-9s %-16s %s\n",
				c.ID,
				c.MessageCount,
				humanize.Bytes(uint64(c.SizeBytes)),
				humanize.Time(c.LastModified),
				truncateShow(oneLine(c.FirstMessage), 60),
			)
		}
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateShow(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
