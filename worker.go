package parserd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rteval/parserd/job"
	"github.com/rteval/parserd/metrics"
)

// Worker processes jobs delivered through the handoff queue.
//
// Each worker exclusively owns one database session and shares the
// transformer, the arbiter and the shutdown flag with its peers. A
// worker loops until shutdown is observed and the queue is drained:
//
//  1. dequeue a job
//  2. acquire the arbiter slot for the job's client
//  3. transform the payload
//  4. write the report document, persist the report rows
//  5. release the slot
//
// Per-job errors are absorbed: a structurally invalid payload marks the
// submission Rejected, everything else marks it Failed, and the worker
// moves on. Only the producer can take the daemon down.
type Worker struct {
	id         int
	session    Session
	transform  Transformer
	queue      *Queue
	arbiter    *Arbiter
	shutdown   *Shutdown
	reportRoot string
	retry      BackoffConfig
	log        *slog.Logger
	metrics    *metrics.Metrics
}

func newWorker(id int, session Session, deps *serviceDeps) *Worker {
	return &Worker{
		id:         id,
		session:    session,
		transform:  deps.transform,
		queue:      deps.queue,
		arbiter:    deps.arbiter,
		shutdown:   deps.shutdown,
		reportRoot: deps.cfg.ReportRoot,
		retry:      deps.cfg.Retry,
		log:        deps.log.With("worker", id),
		metrics:    deps.metrics,
	}
}

func (w *Worker) run(ctx context.Context) {
	w.log.Debug("worker started")
	for {
		jb, ok := w.queue.Dequeue(w.shutdown)
		if !ok {
			w.log.Debug("worker exiting")
			return
		}
		w.metrics.SetQueueDepth(w.queue.Len())
		w.process(ctx, jb)
	}
}

func (w *Worker) process(ctx context.Context, jb *job.Job) {
	slot := w.arbiter.Acquire(jb.ClientID)
	defer slot.Release()

	if err := w.session.MarkInProgress(ctx, jb.SubmissionID); err != nil {
		w.fail(ctx, jb, fmt.Sprintf("cannot mark in progress: %v", err))
		return
	}

	start := time.Now()
	rep, err := w.transform.Transform(ctx, jb.PayloadPath)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			w.reject(ctx, jb, err.Error())
		} else {
			w.fail(ctx, jb, fmt.Sprintf("transform failed: %v", err))
		}
		return
	}
	w.metrics.ObserveTransform(time.Since(start))

	if err := w.writeReport(jb, rep.Document); err != nil {
		w.fail(ctx, jb, fmt.Sprintf("cannot write report: %v", err))
		return
	}

	if err := w.persist(ctx, jb, rep.Rows); err != nil {
		w.fail(ctx, jb, fmt.Sprintf("cannot persist report: %v", err))
		return
	}
	w.metrics.JobSucceeded()
	w.log.Info("submission processed", "submission", jb.SubmissionID, "client", jb.ClientID)
}

// writeReport materialises the report document under the client's
// subtree. The caller holds the arbiter slot for the client, so no other
// worker touches the directory concurrently.
func (w *Worker) writeReport(jb *job.Job, document []byte) error {
	dir := filepath.Join(w.reportRoot, jb.ClientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("report-%d.xml", jb.SubmissionID))
	return os.WriteFile(name, document, 0o644)
}

// persist stores the report rows, retrying transient database failures
// with exponential backoff. The backoff sleep is interrupted by
// shutdown, in which case the last error is surfaced.
func (w *Worker) persist(ctx context.Context, jb *job.Job, rows []ReportRow) error {
	sched := newRetrySchedule(w.retry)
	for attempt := 1; ; attempt++ {
		err := w.session.PersistReport(ctx, jb, rows)
		if err == nil {
			return nil
		}
		delay, ok := sched.next()
		if !ok {
			return err
		}
		w.log.Warn("persist failed, retrying",
			"submission", jb.SubmissionID, "attempt", attempt, "backoff", delay, "error", err)
		if !w.shutdown.Sleep(delay) {
			return err
		}
	}
}

func (w *Worker) fail(ctx context.Context, jb *job.Job, reason string) {
	w.metrics.JobFailed()
	w.log.Error("submission failed", "submission", jb.SubmissionID, "reason", reason)
	if err := w.session.MarkFailed(ctx, jb.SubmissionID, reason); err != nil {
		w.log.Error("cannot mark submission failed", "submission", jb.SubmissionID, "error", err)
	}
}

func (w *Worker) reject(ctx context.Context, jb *job.Job, reason string) {
	w.metrics.JobRejected()
	w.log.Warn("submission rejected", "submission", jb.SubmissionID, "reason", reason)
	if err := w.session.MarkRejected(ctx, jb.SubmissionID, reason); err != nil {
		w.log.Error("cannot mark submission rejected", "submission", jb.SubmissionID, "error", err)
	}
}
