package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the inbox and enqueue jobs for new contact batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ing := ingest.New(st, newQueue(st), cfg.Ingest.BatchLimit)

		res, err := ing.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.Int("batches_seen", res.BatchesSeen),
			zap.Int("skipped", res.BatchesSkipped),
			zap.Int("done", res.BatchesDone),
			zap.Int("failed", res.BatchesFailed),
			zap.Int("jobs_created", res.JobsCreated),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
