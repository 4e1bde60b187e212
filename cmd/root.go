package cmd

import (
	"fmt"
	"os"

	"ccview/internal/config"
	"ccview/internal/corpus"
	"ccview/internal/index"
	"ccview/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.claude-viewer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "ccview",
	Short: "Browse and search local Claude Code conversation logs",
	Long: `ccview reads the JSONL conversation logs under ~/.claude/projects, renders
them as ordered conversations with tool calls and their results, and keeps a
local full-text index so you can search across every project.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		logger.Configure(logger.ParseLevel(c.Log.Level), c.Log.Pretty)
		cfg = c
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openCorpus() *corpus.Corpus {
	return corpus.New(cfg.Corpus.ProjectsDir)
}

// openIndex starts opening the search index in the background. Callers
// must Close the coordinator.
func openIndex() *index.Coordinator {
	c := index.New(index.StoreOpener(cfg.Index.Path, cfg.Corpus.ProjectsDir))
	c.Start()
	return c
}
