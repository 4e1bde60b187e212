package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ccview/internal/export"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var (
	exportFormat     string
	exportOut        string
	exportCopy       bool
	exportNoThinking bool
	exportNoTools    bool
	exportNoStats    bool
	exportBudget     int
	exportTarget     string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "output format (md, json)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write export to file")
	exportCmd.Flags().BoolVar(&exportCopy, "copy", false, "copy export to clipboard")
	exportCmd.Flags().BoolVar(&exportNoThinking, "no-thinking", false, "leave out thinking blocks")
	exportCmd.Flags().BoolVar(&exportNoTools, "no-tools", false, "leave out tool inputs and results")
	exportCmd.Flags().BoolVar(&exportNoStats, "no-stats", false, "leave out the stats header")
	exportCmd.Flags().IntVar(&exportBudget, "budget", 0, "token budget; drop detail until the export fits (0 = no limit)")
	exportCmd.Flags().StringVar(&exportTarget, "target", "", "size the export for a model ("+strings.Join(export.TargetKeys(), ", ")+")")
}

var exportCmd = &cobra.Command{
	Use:   "export <project-id> <conversation-id>",
	Short: "Export a conversation as Markdown or JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := openCorpus().LoadConversation(args[0], args[1])
		if err != nil {
			return err
		}

		budget := exportBudget
		if exportTarget != "" && budget == 0 {
			t, err := export.LookupTarget(exportTarget)
			if err != nil {
				return err
			}
			budget = t.Budget()
		}

		var out string
		switch exportFormat {
		case "md", "markdown":
			opts := export.Options{
				IncludeStats:       !exportNoStats,
				IncludeThinking:    !exportNoThinking,
				IncludeToolDetails: !exportNoTools,
			}
			level, text := export.Fit(conv, args[1], opts, budget)
			if level != export.LevelFull {
				fmt.Fprintf(os.Stderr, "Export reduced to %s level to fit %d tokens (~%d)\n",
					level, budget, export.EstimateTokens(text))
			}
			out = text
		case "json":
			data, err := export.JSON(conv)
			if err != nil {
				return err
			}
			out = string(data) + "\n"
		default:
			return fmt.Errorf("unknown format %q (want md or json)", exportFormat)
		}

		if exportCopy {
			if err := clipboard.WriteAll(out); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
			} else {
				fmt.Println("Export copied to clipboard!")
			}
		}

		if exportOut != "" {
			outPath := exportOut
			if !filepath.IsAbs(outPath) {
				dir, _ := os.Getwd()
				outPath = filepath.Join(dir, outPath)
			}
			if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Printf("Export written to %s\n", outPath)
		}

		if !exportCopy && exportOut == "" {
			fmt.Print(out)
		}
		return nil
	},
}
