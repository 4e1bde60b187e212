package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var indexRebuild bool

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexStatusCmd)

	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "drop the index and rebuild it from scratch")
}

var indexCmd = &cobra.Command{
	Use:   "index [project-id]",
	Short: "Bring the search index up to date (one project or all)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := openIndex()
		defer idx.Close()

		ctx := cmd.Context()
		if indexRebuild {
			if err := idx.Reset(ctx); err != nil {
				return fmt.Errorf("reset index: %w", err)
			}
			fmt.Println("Index cleared")
		}

		projectID := ""
		if len(args) == 1 {
			projectID = args[0]
		}
		report, err := idx.EnsureIndexed(ctx, projectID)
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d conversations in %d projects: %d indexed, %d unchanged, %d pruned\n",
			report.Scanned, report.Projects, report.Indexed,
			report.Scanned-report.Indexed-report.Failed, report.Pruned)
		if report.Failed > 0 {
			fmt.Printf("  warning: %d conversations could not be indexed (see log)\n", report.Failed)
		}
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show search index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := openIndex()
		defer idx.Close()

		st, err := idx.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Index:         %s\n", cfg.Index.Path)
		fmt.Printf("Conversations: %s\n", humanize.Comma(int64(st.ConversationCount)))
		fmt.Printf("Entries:       %s\n", humanize.Comma(int64(st.EntryCount)))
		if !st.LastIndexedAt.IsZero() {
			fmt.Printf("Last indexed:  %s\n", humanize.Time(st.LastIndexedAt))
		}
		return nil
	},
}
