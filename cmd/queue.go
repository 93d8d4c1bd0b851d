package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/model"
	"github.com/sells-group/funnel-cli/internal/queue"
	"github.com/sells-group/funnel-cli/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the job queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts per state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, st, err := openQueue(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := q.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("pending     %d\n", stats.Pending)
		fmt.Printf("processing  %d\n", stats.Processing)
		fmt.Printf("done        %d\n", stats.Done)
		fmt.Printf("error       %d\n", stats.Error)
		return nil
	},
}

var queueListMax int

var queueListCmd = &cobra.Command{
	Use:   "list <pending|processing|done|error>",
	Short: "List jobs in a state, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, st, err := openQueue(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := q.List(ctx, model.JobStatus(args[0]), queueListMax)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CONTACT\tRUN\tATTEMPT\tUPDATED\tLAST ERROR")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				j.ContactKey, j.RunID, j.Attempt,
				j.UpdatedAt.Format("2006-01-02 15:04:05"), j.LastError)
		}
		return tw.Flush()
	},
}

var queueReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rewrite job status fields to match their queue location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, st, err := openQueue(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		fixed, err := q.Reconcile(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("reconcile complete", zap.Int("fixed", fixed))
		return nil
	},
}

func openQueue(ctx context.Context) (*queue.Queue, store.ObjectStore, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	return newQueue(st), st, nil
}

func init() {
	queueListCmd.Flags().IntVar(&queueListMax, "max", 50, "maximum jobs to list")
	queueCmd.AddCommand(queueStatsCmd, queueListCmd, queueReconcileCmd)
	rootCmd.AddCommand(queueCmd)
}
