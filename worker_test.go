package parserd_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"
)

func (db *fakeDB) persistCount(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.persistCalls[id]
}

func startService(t *testing.T, db *fakeDB, tf parserd.Transformer, cfg parserd.Config) *parserd.Service {
	t.Helper()
	svc := parserd.NewService(&fakeGateway{db: db}, tf, cfg, slog.Default(), nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestWorkerProcessesSubmission(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	cfg := testConfig(t, 1)
	svc := startService(t, db, okTransformer(), cfg)

	waitStatus(t, db, 1, job.Succeeded)

	report := filepath.Join(cfg.ReportRoot, "alpha", "report-1.xml")
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	db.mu.Lock()
	rows := db.rows[1]
	db.mu.Unlock()
	if len(rows) != 1 || rows[0].Section != "summary" {
		t.Fatalf("unexpected report rows: %+v", rows)
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	db.add(2, "beta")
	tf := transformFunc(func(ctx context.Context, payloadPath string) (*parserd.Report, error) {
		if strings.Contains(payloadPath, "/1.xml") {
			return nil, fmt.Errorf("%w: unexpected end of document", parserd.ErrMalformedPayload)
		}
		return okTransformer().Transform(ctx, payloadPath)
	})
	svc := startService(t, db, tf, testConfig(t, 1))

	waitStatus(t, db, 1, job.Rejected)
	waitStatus(t, db, 2, job.Succeeded)
	if db.reason(1) == "" {
		t.Fatal("rejected submission must record a reason")
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestWorkerFailsTransientTransformError(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	tf := transformFunc(func(ctx context.Context, payloadPath string) (*parserd.Report, error) {
		return nil, fmt.Errorf("read payload: no such file")
	})
	svc := startService(t, db, tf, testConfig(t, 1))

	waitStatus(t, db, 1, job.Failed)
	if !strings.Contains(db.reason(1), "transform failed") {
		t.Fatalf("unexpected failure reason: %q", db.reason(1))
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestWorkerRetriesPersistThenSucceeds(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	db.persistFail[1] = 2
	svc := startService(t, db, okTransformer(), testConfig(t, 1))

	waitStatus(t, db, 1, job.Succeeded)
	if got := db.persistCount(1); got != 3 {
		t.Fatalf("expected 3 persist attempts, got %d", got)
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}

func TestWorkerPersistRetryExhaustion(t *testing.T) {
	db := newFakeDB()
	db.add(1, "alpha")
	db.persistFail[1] = 10
	svc := startService(t, db, okTransformer(), testConfig(t, 1))

	waitStatus(t, db, 1, job.Failed)
	if got := db.persistCount(1); got != 3 {
		t.Fatalf("expected exactly 3 persist attempts, got %d", got)
	}
	if !strings.Contains(db.reason(1), "cannot persist report") {
		t.Fatalf("unexpected failure reason: %q", db.reason(1))
	}

	svc.Shutdown().Trigger()
	waitDone(t, svc)
}
