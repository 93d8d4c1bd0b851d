package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/queue"
	"github.com/sells-group/funnel-cli/internal/worker"
)

var (
	workConcurrency int
	workOnce        bool
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Process queued jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		q := newQueue(st)
		if err := reconcileAtStartup(ctx, q); err != nil {
			return err
		}

		mh, err := newMaxHelper()
		if err != nil {
			return err
		}

		sink, err := newSink(ctx)
		if err != nil {
			return err
		}

		w := worker.New(worker.Deps{
			Queue:     q,
			Store:     st,
			Contacts:  mh,
			Analyzer:  newAnalyzer(),
			Sink:      sink,
			PollSleep: cfg.Worker.PollSleep(),
		})

		if workOnce {
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					return err
				}
				if !processed {
					return nil
				}
			}
		}

		n := workConcurrency
		if n == 0 {
			n = cfg.Worker.Concurrency
		}

		zap.L().Info("worker started", zap.Int("concurrency", n))
		if err := w.RunN(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		zap.L().Info("worker stopped")
		return nil
	},
}

// reconcileAtStartup requeues jobs a crashed run left in processing, so
// they are picked up again without operator intervention.
func reconcileAtStartup(ctx context.Context, q *queue.Queue) error {
	requeued, err := q.Reconcile(ctx)
	if err != nil {
		return eris.Wrap(err, "reconcile queue")
	}
	if requeued > 0 {
		zap.L().Info("requeued jobs left processing by a previous run",
			zap.Int("count", requeued))
	}
	return nil
}

func init() {
	workCmd.Flags().IntVar(&workConcurrency, "workers", 0, "concurrent workers (default from config)")
	workCmd.Flags().BoolVar(&workOnce, "once", false, "drain the queue and exit")
	rootCmd.AddCommand(workCmd)
}
