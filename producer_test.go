package parserd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"
)

func TestProducerDrainsPendingWithoutNotification(t *testing.T) {
	// Rows left pending by a prior daemon lifetime are claimed on
	// startup; no notification ever arrives for them.
	db := newFakeDB()
	db.add(1, "alpha")
	svc := startService(t, db, okTransformer(), testConfig(t, 1))

	waitStatus(t, db, 1, job.Succeeded)

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestProducerWakesOnNotification(t *testing.T) {
	db := newFakeDB()
	svc := startService(t, db, okTransformer(), testConfig(t, 1))

	// Let the producer park in the notification wait first.
	time.Sleep(50 * time.Millisecond)
	db.addAndNotify(1, "alpha")

	waitStatus(t, db, 1, job.Succeeded)

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestProducerFatalClaimError(t *testing.T) {
	db := newFakeDB()
	db.claimErr = errors.New("connection refused")
	svc := startService(t, db, okTransformer(), testConfig(t, 2))

	waitDone(t, svc)
	if svc.Err() == nil {
		t.Fatal("a claim failure must surface as a fatal service error")
	}
	if !svc.Shutdown().Triggered() {
		t.Fatal("a fatal producer error must trigger shutdown")
	}
}

func TestProducerBackpressureLosesNothing(t *testing.T) {
	db := newFakeDB()
	for i := int64(1); i <= 5; i++ {
		db.add(i, "alpha")
	}
	slow := transformFunc(func(ctx context.Context, payloadPath string) (*parserd.Report, error) {
		time.Sleep(20 * time.Millisecond)
		return okTransformer().Transform(ctx, payloadPath)
	})
	cfg := testConfig(t, 1)
	cfg.QueueCapacity = 2
	svc := startService(t, db, slow, cfg)

	for i := int64(1); i <= 5; i++ {
		waitStatus(t, db, i, job.Succeeded)
	}
	// Exactly-once delivery: every job persisted a single time.
	for i := int64(1); i <= 5; i++ {
		if got := db.persistCount(i); got != 1 {
			t.Fatalf("submission %d persisted %d times", i, got)
		}
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestProducerAbandonsUndispatchedJobOnShutdown(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	blocking := transformFunc(func(ctx context.Context, payloadPath string) (*parserd.Report, error) {
		started <- struct{}{}
		<-release
		return okTransformer().Transform(ctx, payloadPath)
	})
	cfg := testConfig(t, 1)
	cfg.QueueCapacity = 1
	cfg.EnqueueBackoff = 10 * time.Minute
	svc := startService(t, db, blocking, cfg)

	// Worker is now inside the transform of submission 1.
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never started transforming")
	}

	// Submission 2 fills the queue; submission 3 finds it full and
	// parks the producer in the enqueue backoff.
	db.addAndNotify(2, "alpha")
	waitStatus(t, db, 2, job.Claimed)
	db.addAndNotify(3, "alpha")
	waitStatus(t, db, 3, job.Claimed)
	time.Sleep(100 * time.Millisecond)

	svc.Shutdown().Trigger()
	close(release)
	waitDone(t, svc)

	// The blocked job and the buffered job still complete; the job the
	// producer was holding is failed, not lost in Claimed.
	waitStatus(t, db, 1, job.Succeeded)
	waitStatus(t, db, 2, job.Succeeded)
	waitStatus(t, db, 3, job.Failed)
	if db.reason(3) != "shutdown before dispatch" {
		t.Fatalf("unexpected abandon reason: %q", db.reason(3))
	}
	if svc.Err() != nil {
		t.Fatalf("graceful shutdown must not report an error, got %v", svc.Err())
	}
}
