package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ccview/internal/index"
	"ccview/internal/logger"
	"ccview/internal/watch"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchJSON    bool
	watchNoSweep bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print each handled change as a JSON line")
	watchCmd.Flags().BoolVar(&watchNoSweep, "no-sweep", false, "skip the initial full index sweep")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the search index updated as conversations change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		idx := openIndex()
		defer idx.Close()

		enc := json.NewEncoder(os.Stdout)
		reactor := watch.New(cfg.Corpus.ProjectsDir, idx, watch.Options{
			Debounce: cfg.Watch.Debounce,
			OnEvent: func(ev watch.Event) {
				if watchJSON {
					_ = enc.Encode(ev)
					return
				}
				fmt.Printf("%s %s %s/%s\n", ev.Timestamp.Local().Format("15:04:05"), ev.Type, ev.ProjectID, ev.ConversationID)
			},
		})

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return reactor.Run(ctx)
		})
		if !watchNoSweep {
			g.Go(func() error {
				report, err := idx.EnsureIndexed(ctx, "")
				switch {
				case errors.Is(err, context.Canceled):
					return nil
				case errors.Is(err, index.ErrUnavailable):
					// Without an index there is nothing to keep in step.
					return err
				case err != nil:
					logger.Warnf("initial sweep failed: %v", err)
					return nil
				}
				logger.Infof("initial sweep: %d scanned, %d indexed, %d pruned",
					report.Scanned, report.Indexed, report.Pruned)
				return nil
			})
		}

		logger.Infof("watching %s (Ctrl+C to stop)", cfg.Corpus.ProjectsDir)
		return g.Wait()
	},
}
