package cmd

import (
	"fmt"

	"ccview/internal/config"
	"ccview/internal/store"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file and create the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}

		written, err := config.WriteDefault(path, cfg)
		if err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		if written {
			fmt.Printf("Config written to %s\n", path)
		} else {
			fmt.Printf("Config already exists at %s\n", path)
		}

		st, err := store.Open(cfg.Index.Path, cfg.Corpus.ProjectsDir)
		if err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		st.Close()

		fmt.Printf("Search index ready at %s\n", cfg.Index.Path)
		fmt.Printf("Reading conversations from %s\n", cfg.Corpus.ProjectsDir)
		fmt.Println("Run 'ccview index' to build the index.")
		return nil
	},
}
