package cmd

import (
	"fmt"

	"ccview/internal/export"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(targetsCmd)
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List models that 'export --target' can size an export for",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-10s %-20s %-12s %s\n", "KEY", "MODEL", "CONTEXT", "EXPORT BUDGET")
		fmt.Println("──────────────────────────────────────────────────────────")
		for _, key := range export.TargetKeys() {
			t, _ := export.LookupTarget(key)
			fmt.Printf("%-10s %-20s %-12s %s\n", t.Key, t.Name,
				humanize.SIWithDigits(float64(t.ContextLimit), 0, ""),
				humanize.Comma(int64(t.Budget())))
		}
	},
}
