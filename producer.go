package parserd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rteval/parserd/job"
	"github.com/rteval/parserd/metrics"
)

// Producer is the single claiming loop of the daemon.
//
// It repeatedly claims the oldest pending submission and hands it into
// the queue. When the database queue is empty it parks on the
// notification channel; when the in-memory queue is full it backs off
// and retries the same job. Any gateway error is fatal: the producer
// triggers shutdown and surfaces the error, which becomes the daemon's
// nonzero exit.
//
// Claim-before-wait is deliberate: submissions left pending by a prior
// daemon lifetime are drained on restart without waiting for a
// notification that will never come.
type Producer struct {
	session        Session
	listener       Listener
	queue          *Queue
	shutdown       *Shutdown
	enqueueBackoff time.Duration
	waitInterval   time.Duration
	log            *slog.Logger
	metrics        *metrics.Metrics
}

func newProducer(session Session, listener Listener, deps *serviceDeps) *Producer {
	return &Producer{
		session:        session,
		listener:       listener,
		queue:          deps.queue,
		shutdown:       deps.shutdown,
		enqueueBackoff: deps.cfg.EnqueueBackoff,
		waitInterval:   deps.cfg.WaitInterval,
		log:            deps.log.With("role", "producer"),
		metrics:        deps.metrics,
	}
}

// run executes the claim loop until shutdown. It returns a non-nil error
// only for fatal gateway failures, after triggering shutdown itself.
func (p *Producer) run(ctx context.Context) error {
	for {
		if p.shutdown.Triggered() {
			return nil
		}
		jb, err := p.session.ClaimNext(ctx)
		if err != nil {
			p.shutdown.Trigger()
			return fmt.Errorf("claim next submission: %w", err)
		}
		if jb == nil {
			if err := p.waitNotify(ctx); err != nil {
				p.shutdown.Trigger()
				return fmt.Errorf("wait for notification: %w", err)
			}
			continue
		}
		if !p.dispatch(jb) {
			p.abandon(ctx, jb)
			return nil
		}
	}
}

// waitNotify parks on the notification channel until a notification
// arrives or shutdown is triggered. The wait is sliced so that shutdown
// is observed within waitInterval even if the driver blocks.
func (p *Producer) waitNotify(ctx context.Context) error {
	wctx, cancel := p.shutdown.Context(ctx)
	defer cancel()
	for {
		if p.shutdown.Triggered() {
			return nil
		}
		err := p.listener.Wait(wctx, p.waitInterval)
		if err == nil {
			p.metrics.NotificationReceived()
			return nil
		}
		if errors.Is(err, ErrWaitTimeout) {
			continue
		}
		if p.shutdown.Triggered() || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// dispatch enqueues the job, backing off while the queue is full. It
// returns false when shutdown interrupted the backoff and the job was
// not handed over.
func (p *Producer) dispatch(jb *job.Job) bool {
	warned := false
	for {
		if p.queue.TryEnqueue(jb) {
			p.metrics.SetQueueDepth(p.queue.Len())
			return true
		}
		if !warned {
			warned = true
			p.metrics.QueueFull()
			p.log.Warn("job queue full, backing off",
				"submission", jb.SubmissionID, "backoff", p.enqueueBackoff)
		}
		if !p.shutdown.Sleep(p.enqueueBackoff) {
			return false
		}
	}
}

// abandon marks a claimed-but-undelivered job as failed so no row stays
// Claimed after teardown. The mark runs on a context detached from the
// caller's cancellation, with its own timeout, so it is recorded even if
// the caller's context has been canceled.
func (p *Producer) abandon(ctx context.Context, jb *job.Job) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.session.MarkFailed(mctx, jb.SubmissionID, "shutdown before dispatch"); err != nil {
		p.log.Error("cannot mark abandoned submission failed",
			"submission", jb.SubmissionID, "error", err)
	}
}
