package parserd

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/rteval/parserd/job"
)

// SweepConfig defines the scheduling and filtering parameters for a
// Sweeper.
//
// Status specifies which terminal state to purge; job.Unknown targets
// all terminal states. Interval defines how often the sweep runs.
// Retention defines how long a terminal submission is kept before it
// becomes eligible for deletion.
type SweepConfig struct {
	Status    job.Status
	Interval  time.Duration
	Retention time.Duration
}

// Sweeper periodically removes terminal submissions and their report
// rows according to the retention policy.
//
// Sweeper is background retention management. It does not participate
// in job processing and runs on its own database session.
//
// Sweeper has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the loop.
//   - Stop waits for the sweep loop to finish or until the timeout
//     expires.
type Sweeper struct {
	lifecycle
	cleaner   Cleaner
	log       *slog.Logger
	status    job.Status
	interval  time.Duration
	retention time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper using the provided Cleaner implementation
// and configuration.
//
// The sweeper is not started automatically. Call Start to begin periodic
// sweeping.
func NewSweeper(cleaner Cleaner, config *SweepConfig, log *slog.Logger) *Sweeper {
	return &Sweeper{
		cleaner:   cleaner,
		log:       log,
		status:    config.Status,
		interval:  config.Interval,
		retention: config.Retention,
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	before := time.Now().Add(-sw.retention)
	count, err := sw.cleaner.Clean(ctx, sw.status, &before)
	if err != nil {
		sw.log.Error("error while sweeping submissions", "error", err)
		return
	}
	if count > 0 {
		sw.log.Info("swept submissions", "count", count)
	}
}

// loop sweeps once immediately, then on every tick. The first tick is
// jittered by up to a tenth of the interval so that several daemons
// sharing one database do not sweep in lockstep.
func (sw *Sweeper) loop(ctx context.Context) {
	defer close(sw.done)
	sw.sweep(ctx)
	jitter := time.Duration(rand.Int64N(int64(sw.interval)/10 + 1))
	timer := time.NewTimer(sw.interval + jitter)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			sw.sweep(ctx)
			timer.Reset(sw.interval)
		}
	}
}

// Start launches the background sweep loop.
//
// Start returns ErrDoubleStarted if the sweeper is already running. The
// provided context cancels the loop in addition to Stop.
func (sw *Sweeper) Start(ctx context.Context) error {
	if err := sw.begin(); err != nil {
		return err
	}
	ctx, sw.cancel = context.WithCancel(ctx)
	sw.done = make(chan struct{})
	go sw.loop(ctx)
	return nil
}

// Stop terminates the sweep loop.
//
// Stop waits until the loop finishes or the specified timeout expires;
// on timeout ErrStopTimeout is returned.
//
// Stop returns ErrDoubleStopped if the sweeper is not running.
func (sw *Sweeper) Stop(timeout time.Duration) error {
	return sw.end(timeout, func() <-chan struct{} {
		sw.cancel()
		return sw.done
	})
}
