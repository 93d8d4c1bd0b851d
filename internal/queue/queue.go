// Package queue implements the job state machine on top of the object
// store's four queue collections. A claim is a conditional move from
// pending to processing; the claimant that wins the move owns the job until
// it transitions it to done, back to pending for retry, or to error.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/model"
	"github.com/sells-group/funnel-cli/internal/store"
)

// Queue coordinates job transitions between the queue collections.
type Queue struct {
	store       store.ObjectStore
	maxAttempts int
	claimLimit  int
}

// New creates a Queue. maxAttempts bounds re-execution per job; claimLimit
// bounds the pending scan per claim.
func New(s store.ObjectStore, maxAttempts, claimLimit int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if claimLimit <= 0 {
		claimLimit = 10
	}
	return &Queue{store: s, maxAttempts: maxAttempts, claimLimit: claimLimit}
}

// MaxAttempts returns the retry budget.
func (q *Queue) MaxAttempts() int { return q.maxAttempts }

// ClaimedJob is a job owned by the current worker, addressed by its store
// id inside the processing collection.
type ClaimedJob struct {
	ID  string
	Job *model.Job
}

// Enqueue creates a pending job record. It reports created=false when a job
// with the same (contact_key, run) name is already pending, which makes
// re-running ingestion for a half-finished batch safe.
func (q *Queue) Enqueue(ctx context.Context, job *model.Job) (bool, error) {
	job.Status = model.JobStatusPending
	data, err := json.Marshal(job)
	if err != nil {
		return false, eris.Wrapf(err, "queue: encode job %s", job.ObjectName())
	}
	_, err = q.store.Put(ctx, store.CollPending, job.ObjectName(), data)
	if errors.Is(err, store.ErrExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Claim scans up to claimLimit pending jobs oldest-first and tries to take
// ownership of one by moving it into processing. Losing a move race is not
// an error; the claimant skips to the next candidate. On success the job's
// attempt counter is incremented and its status persisted as processing
// before Claim returns. Returns (nil, nil) when nothing could be claimed.
func (q *Queue) Claim(ctx context.Context) (*ClaimedJob, error) {
	candidates, err := q.store.List(ctx, store.CollPending, q.claimLimit)
	if err != nil {
		return nil, eris.Wrap(err, "queue: list pending")
	}

	for _, cand := range candidates {
		procID, err := q.store.Move(ctx, cand.ID, store.CollPending, store.CollProcessing)
		if errors.Is(err, store.ErrNotFound) {
			continue // another claimant won
		}
		if err != nil {
			return nil, eris.Wrapf(err, "queue: claim %s", cand.Name)
		}

		job, err := q.load(ctx, procID)
		if err != nil {
			// We own an object we cannot decode or read. Hand it back so a
			// later claim (or an operator) can look at it, and keep scanning.
			zap.L().Warn("claimed job unreadable, requeueing",
				zap.String("object", cand.Name),
				zap.Error(err),
			)
			if _, mvErr := q.store.Move(ctx, procID, store.CollProcessing, store.CollPending); mvErr != nil {
				zap.L().Error("requeue of unreadable job failed",
					zap.String("object", cand.Name),
					zap.Error(mvErr),
				)
			}
			continue
		}

		job.Attempt++
		job.Status = model.JobStatusProcessing
		job.UpdatedAt = time.Now().UTC()
		if err := q.persist(ctx, procID, job); err != nil {
			return nil, err
		}
		return &ClaimedJob{ID: procID, Job: job}, nil
	}

	return nil, nil
}

// Complete transitions a claimed job to done. The status field is persisted
// before the move so a crash in between leaves a recoverable record.
func (q *Queue) Complete(ctx context.Context, cj *ClaimedJob) error {
	now := time.Now().UTC()
	cj.Job.Status = model.JobStatusDone
	cj.Job.DoneAt = &now
	cj.Job.UpdatedAt = now
	if err := q.persist(ctx, cj.ID, cj.Job); err != nil {
		return err
	}
	newID, err := q.store.Move(ctx, cj.ID, store.CollProcessing, store.CollDone)
	if err != nil {
		return eris.Wrapf(err, "queue: complete %s", cj.Job.ObjectName())
	}
	cj.ID = newID
	return nil
}

// Fail records procErr on the job and routes it: back to pending while the
// attempt budget lasts, to the error collection (dead letter) once
// attempt ≥ max attempts. The attempt counter was already charged at claim
// time and is not touched here.
func (q *Queue) Fail(ctx context.Context, cj *ClaimedJob, procErr error) error {
	cj.Job.LastError = procErr.Error()
	cj.Job.UpdatedAt = time.Now().UTC()

	dest := store.CollPending
	cj.Job.Status = model.JobStatusPending
	if cj.Job.Attempt >= q.maxAttempts {
		dest = store.CollError
		cj.Job.Status = model.JobStatusError
	}

	// Best effort: a failed field write must not strand the job in
	// processing, the move below still reroutes it.
	if err := q.persist(ctx, cj.ID, cj.Job); err != nil {
		zap.L().Warn("persisting failure details failed",
			zap.String("object", cj.Job.ObjectName()),
			zap.Error(err),
		)
	}

	newID, err := q.store.Move(ctx, cj.ID, store.CollProcessing, dest)
	if err != nil {
		return eris.Wrapf(err, "queue: fail %s", cj.Job.ObjectName())
	}
	cj.ID = newID

	if dest == store.CollError {
		zap.L().Error("job dead-lettered",
			zap.String("contact_key", cj.Job.ContactKey),
			zap.String("run_id", cj.Job.RunID),
			zap.Int("attempt", cj.Job.Attempt),
			zap.String("last_error", cj.Job.LastError),
		)
	} else {
		zap.L().Warn("job requeued for retry",
			zap.String("contact_key", cj.Job.ContactKey),
			zap.Int("attempt", cj.Job.Attempt),
			zap.Error(procErr),
		)
	}
	return nil
}

// statusByCollection gives the status each queue collection implies.
var statusByCollection = map[string]model.JobStatus{
	store.CollPending:    model.JobStatusPending,
	store.CollProcessing: model.JobStatusProcessing,
	store.CollDone:       model.JobStatusDone,
	store.CollError:      model.JobStatusError,
}

// Reconcile repairs jobs whose embedded status field disagrees with the
// collection they live in, which can happen when a crash lands between a
// field write and the following move. Location is what the claim protocol
// serializes on, so location wins and the field is rewritten. Returns the
// number of repaired jobs.
func (q *Queue) Reconcile(ctx context.Context) (int, error) {
	fixed := 0
	for coll, want := range statusByCollection {
		infos, err := q.store.List(ctx, coll, 0)
		if err != nil {
			return fixed, eris.Wrapf(err, "queue: reconcile list %s", coll)
		}
		for _, info := range infos {
			job, err := q.load(ctx, info.ID)
			if err != nil {
				zap.L().Warn("reconcile: unreadable job",
					zap.String("object", info.Name),
					zap.Error(err),
				)
				continue
			}
			if job.Status == want {
				continue
			}
			zap.L().Info("reconcile: status field diverged from location",
				zap.String("object", info.Name),
				zap.String("field", string(job.Status)),
				zap.String("location", string(want)),
			)
			job.Status = want
			job.UpdatedAt = time.Now().UTC()
			if err := q.persist(ctx, info.ID, job); err != nil {
				return fixed, err
			}
			fixed++
		}
	}
	return fixed, nil
}

// Stats holds per-state job counts.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Error      int `json:"error"`
}

// Stats counts jobs per state.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	for coll, target := range map[string]*int{
		store.CollPending:    &st.Pending,
		store.CollProcessing: &st.Processing,
		store.CollDone:       &st.Done,
		store.CollError:      &st.Error,
	} {
		infos, err := q.store.List(ctx, coll, 0)
		if err != nil {
			return nil, eris.Wrapf(err, "queue: stats list %s", coll)
		}
		*target = len(infos)
	}
	return &st, nil
}

// List returns up to max jobs in the given state, oldest first.
func (q *Queue) List(ctx context.Context, status model.JobStatus, max int) ([]model.Job, error) {
	var coll string
	for c, s := range statusByCollection {
		if s == status {
			coll = c
		}
	}
	if coll == "" {
		return nil, eris.Errorf("queue: unknown status %q", status)
	}

	infos, err := q.store.List(ctx, coll, max)
	if err != nil {
		return nil, eris.Wrapf(err, "queue: list %s", coll)
	}
	jobs := make([]model.Job, 0, len(infos))
	for _, info := range infos {
		job, err := q.load(ctx, info.ID)
		if err != nil {
			zap.L().Warn("skipping unreadable job", zap.String("object", info.Name), zap.Error(err))
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (q *Queue) load(ctx context.Context, id string) (*model.Job, error) {
	data, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrapf(err, "queue: decode job %s", id)
	}
	return &job, nil
}

func (q *Queue) persist(ctx context.Context, id string, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return eris.Wrapf(err, "queue: encode job %s", job.ObjectName())
	}
	if err := q.store.Update(ctx, id, data); err != nil {
		return eris.Wrapf(err, "queue: persist job %s", job.ObjectName())
	}
	return nil
}
