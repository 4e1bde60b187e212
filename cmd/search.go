package cmd

import (
	"errors"
	"fmt"
	"strings"

	"ccview/internal/index"
	"ccview/internal/logger"
	"ccview/internal/store"

	"github.com/spf13/cobra"
)

var (
	searchLimit     int
	searchJSON      bool
	searchNoRefresh bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print JSON instead of text")
	searchCmd.Flags().BoolVar(&searchNoRefresh, "no-refresh", false, "search the index as is, without re-indexing stale conversations")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search all conversations for text (case-insensitive substring)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit := searchLimit
		if limit <= 0 {
			limit = cfg.Search.Limit
		}

		idx := openIndex()
		defer idx.Close()
		ctx := cmd.Context()

		if !searchNoRefresh && len([]rune(query)) >= store.MinQueryLength {
			if _, err := idx.EnsureIndexed(ctx, ""); err != nil && !errors.Is(err, index.ErrUnavailable) {
				logger.Warnf("index refresh failed: %v", err)
			}
		}

		results, err := idx.Search(ctx, query, limit)
		if err != nil {
			if !errors.Is(err, index.ErrUnavailable) {
				return err
			}
			logger.Warnf("search unavailable: %v", err)
		}

		if searchJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No results")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s/%s:%d [%s]\n  %s\n", r.ProjectID, r.ConversationID, r.Line, r.Type, oneLine(r.Snippet))
		}
		if len(results) == limit {
			fmt.Printf("(showing first %d results; use --limit for more)\n", limit)
		}
		return nil
	},
}
