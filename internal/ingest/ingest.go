// Package ingest turns inbox batches into pending jobs. Each source batch
// is indexed exactly once: the presence of its batch index record, whatever
// its status, is the idempotency gate for re-ingestion.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/model"
	"github.com/sells-group/funnel-cli/internal/queue"
	"github.com/sells-group/funnel-cli/internal/store"
)

// Ingestor scans the inbox and materializes jobs.
type Ingestor struct {
	store      store.ObjectStore
	queue      *queue.Queue
	batchLimit int
}

// New creates an Ingestor. batchLimit bounds the inbox scan per run.
func New(s store.ObjectStore, q *queue.Queue, batchLimit int) *Ingestor {
	if batchLimit <= 0 {
		batchLimit = 10
	}
	return &Ingestor{store: s, queue: q, batchLimit: batchLimit}
}

// Result summarizes one ingestion pass.
type Result struct {
	BatchesSeen    int
	BatchesSkipped int
	BatchesDone    int
	BatchesFailed  int
	JobsCreated    int
}

// Run lists up to batchLimit inbox batches and ingests each unseen one:
// index record first, then jobs, then the archive move, then the index
// flips to done. A batch that fails is marked on its index record and the
// pass continues; one bad workbook never aborts the run.
func (in *Ingestor) Run(ctx context.Context) (*Result, error) {
	batches, err := in.store.List(ctx, store.CollInbox, in.batchLimit)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list inbox")
	}

	res := &Result{BatchesSeen: len(batches)}
	for _, batch := range batches {
		idx := &model.BatchIndex{
			BatchID:   batch.ID,
			Name:      batch.Name,
			Status:    model.BatchStatusProcessing,
			RunID:     newRunID(batch.ID),
			CreatedAt: time.Now().UTC(),
		}

		_, err := in.store.FindByName(ctx, store.CollBatches, idx.ObjectName())
		if err == nil {
			res.BatchesSkipped++
			continue // already ingested (or at least attempted)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, eris.Wrapf(err, "ingest: check index for %s", batch.Name)
		}

		idxID, err := in.putIndex(ctx, idx)
		if err != nil {
			return res, err
		}

		created, err := in.ingestBatch(ctx, batch, idx.RunID)
		now := time.Now().UTC()
		idx.ProcessedAt = &now
		if err != nil {
			idx.Status = model.BatchStatusError
			idx.Error = err.Error()
			res.BatchesFailed++
			zap.L().Error("batch ingestion failed",
				zap.String("batch", batch.Name),
				zap.Error(err),
			)
		} else {
			idx.Status = model.BatchStatusDone
			res.BatchesDone++
			res.JobsCreated += created
			zap.L().Info("batch ingested",
				zap.String("batch", batch.Name),
				zap.String("run_id", idx.RunID),
				zap.Int("jobs_created", created),
			)
		}
		if err := in.updateIndex(ctx, idxID, idx); err != nil {
			zap.L().Warn("batch index update failed",
				zap.String("batch", batch.Name),
				zap.Error(err),
			)
		}
	}
	return res, nil
}

// ingestBatch parses one workbook, enqueues a job per surviving contact and
// archives the source object. Returns the number of jobs created.
func (in *Ingestor) ingestBatch(ctx context.Context, batch store.ObjectInfo, runID string) (int, error) {
	data, err := in.store.Get(ctx, batch.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: download %s", batch.Name)
	}

	contacts, err := ReadContacts(data)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: parse %s", batch.Name)
	}

	created := 0
	now := time.Now().UTC()
	for _, c := range contacts {
		job := &model.Job{
			ContactKey: c.Phone,
			Name:       c.Name,
			Email:      c.Email,
			RunID:      runID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ok, err := in.queue.Enqueue(ctx, job)
		if err != nil {
			return created, eris.Wrapf(err, "ingest: enqueue %s", job.ObjectName())
		}
		if ok {
			created++
		}
	}

	if _, err := in.store.Move(ctx, batch.ID, store.CollInbox, store.CollArchive); err != nil {
		return created, eris.Wrapf(err, "ingest: archive %s", batch.Name)
	}
	return created, nil
}

func (in *Ingestor) putIndex(ctx context.Context, idx *model.BatchIndex) (string, error) {
	data, err := json.Marshal(idx)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: encode index %s", idx.ObjectName())
	}
	id, err := in.store.Put(ctx, store.CollBatches, idx.ObjectName(), data)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: create index %s", idx.ObjectName())
	}
	return id, nil
}

func (in *Ingestor) updateIndex(ctx context.Context, id string, idx *model.BatchIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return eris.Wrapf(err, "ingest: encode index %s", idx.ObjectName())
	}
	return in.store.Update(ctx, id, data)
}

// newRunID derives a run identifier from the batch identifier and the
// ingestion instant.
func newRunID(batchID string) string {
	ts := strings.ReplaceAll(time.Now().UTC().Format(time.RFC3339), ":", "-")
	return model.IndexKey(batchID) + "__" + ts
}
