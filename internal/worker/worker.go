// Package worker drains the job queue: one claimed job in, one applicants
// row out.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funnel-cli/internal/analyzer"
	"github.com/sells-group/funnel-cli/internal/cache"
	"github.com/sells-group/funnel-cli/internal/queue"
	"github.com/sells-group/funnel-cli/internal/sheet"
	"github.com/sells-group/funnel-cli/internal/store"
	"github.com/sells-group/funnel-cli/pkg/maxhelper"
)

const defaultPollSleep = 2 * time.Second

// Deps carries everything a Worker needs.
type Deps struct {
	Queue     *queue.Queue
	Store     store.ObjectStore
	Contacts  maxhelper.Client
	Analyzer  analyzer.Analyzer
	Sink      sheet.Sink
	PollSleep time.Duration
}

// Worker processes claimed jobs end to end.
type Worker struct {
	queue     *queue.Queue
	store     store.ObjectStore
	contacts  maxhelper.Client
	analyzer  analyzer.Analyzer
	sink      sheet.Sink
	directory *cache.Directory
	rows      *cache.RowIndex
	pollSleep time.Duration
}

func New(deps Deps) *Worker {
	sleep := deps.PollSleep
	if sleep <= 0 {
		sleep = defaultPollSleep
	}
	return &Worker{
		queue:     deps.Queue,
		store:     deps.Store,
		contacts:  deps.Contacts,
		analyzer:  deps.Analyzer,
		sink:      deps.Sink,
		directory: cache.NewDirectory(deps.Store),
		rows:      cache.NewRowIndex(deps.Store),
		pollSleep: sleep,
	}
}

// rawSnapshot is the envelope written to snapshots/raw. The fetched
// payload is preserved verbatim inside it.
type rawSnapshot struct {
	ContactKey         string          `json:"contact_key"`
	MaxHelperContactID string          `json:"maxhelper_contact_id"`
	FetchedAt          string          `json:"fetched_at"`
	MessagesRaw        json.RawMessage `json:"messages_raw"`
}

// ProcessOne claims a single job and runs it to done or error. It returns
// false when the pending queue was empty. A job that fails its attempt is
// still a processed job; the returned error is reserved for queue
// infrastructure failures.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	cj, err := w.queue.Claim(ctx)
	if err != nil {
		return false, err
	}
	if cj == nil {
		return false, nil
	}

	log := zap.L().With(
		zap.String("contact_key", cj.Job.ContactKey),
		zap.String("run_id", cj.Job.RunID),
		zap.Int("attempt", cj.Job.Attempt),
	)

	if procErr := w.process(ctx, cj); procErr != nil {
		log.Warn("job attempt failed", zap.Error(procErr))
		if failErr := w.queue.Fail(ctx, cj, procErr); failErr != nil {
			return true, failErr
		}
		return true, nil
	}

	if err := w.queue.Complete(ctx, cj); err != nil {
		return true, err
	}
	log.Info("job done")
	return true, nil
}

func (w *Worker) process(ctx context.Context, cj *queue.ClaimedJob) error {
	job := cj.Job

	contactID, err := w.resolveContact(ctx, job.ContactKey)
	if err != nil {
		return err
	}

	// No directory match means no conversation; the analyzer still runs
	// so the contact lands on the sheet as NO_RESPONSE.
	messages := json.RawMessage("[]")
	if contactID != "" {
		messages, err = w.contacts.Messages(ctx, contactID)
		if err != nil {
			return eris.Wrap(err, "worker: fetch messages")
		}
	}

	snapName := job.ContactKey + "__" + job.RunID + ".json"

	snap, err := json.Marshal(rawSnapshot{
		ContactKey:         job.ContactKey,
		MaxHelperContactID: contactID,
		FetchedAt:          time.Now().UTC().Format(time.RFC3339),
		MessagesRaw:        messages,
	})
	if err != nil {
		return eris.Wrap(err, "worker: marshal raw snapshot")
	}
	if _, err := store.Upsert(ctx, w.store, store.CollRaw, snapName, snap); err != nil {
		return eris.Wrap(err, "worker: write raw snapshot")
	}

	rec, err := w.analyzer.Analyze(ctx, *job, messages)
	if err != nil {
		return eris.Wrap(err, "worker: analyze")
	}

	recData, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "worker: marshal analysis")
	}
	if _, err := store.Upsert(ctx, w.store, store.CollAnalysis, snapName, recData); err != nil {
		return eris.Wrap(err, "worker: write analysis snapshot")
	}

	return w.upsertRow(ctx, job.ContactKey, sheet.ProjectRow(rec))
}

// resolveContact maps a contact key to the upstream contact id, caching
// hits. Misses are not cached so late registrations get picked up on
// retry.
func (w *Worker) resolveContact(ctx context.Context, contactKey string) (string, error) {
	id, ok, err := w.directory.Get(ctx, contactKey)
	if err != nil {
		return "", eris.Wrap(err, "worker: contact cache")
	}
	if ok {
		return id, nil
	}

	id, err = w.contacts.ContactByNumber(ctx, contactKey)
	if err != nil {
		return "", eris.Wrap(err, "worker: lookup contact")
	}
	if id != "" {
		if err := w.directory.Set(ctx, contactKey, id); err != nil {
			return "", eris.Wrap(err, "worker: cache contact id")
		}
	}
	return id, nil
}

// upsertRow writes the projected row, reusing the cached row number when
// the contact has been written before.
func (w *Worker) upsertRow(ctx context.Context, contactKey string, values []string) error {
	row, ok, err := w.rows.Get(ctx, contactKey)
	if err != nil {
		return eris.Wrap(err, "worker: row index")
	}

	if ok {
		if err := w.sink.UpdateRow(ctx, row, values); err != nil {
			return eris.Wrap(err, "worker: update row")
		}
		return nil
	}

	row, err = w.sink.AppendRow(ctx, values)
	if err != nil {
		return eris.Wrap(err, "worker: append row")
	}
	if err := w.rows.Set(ctx, contactKey, row); err != nil {
		return eris.Wrap(err, "worker: cache row number")
	}
	return nil
}

// Run drains the queue until ctx is cancelled, sleeping between polls
// when it is empty.
func (w *Worker) Run(ctx context.Context) error {
	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Error("worker: process failed", zap.Error(err))
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollSleep):
		}
	}
}

// RunN runs n concurrent workers over the same queue. The claim step is a
// conditional move, so two workers never process the same job.
func (w *Worker) RunN(ctx context.Context, n int) error {
	if n <= 1 {
		return w.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
