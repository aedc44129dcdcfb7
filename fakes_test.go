package parserd_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"
)

// fakeDB is the shared in-memory stand-in for the submission database.
// All sessions opened from one fakeGateway observe the same state, like
// pool connections against one real database.
type fakeDB struct {
	mu       sync.Mutex
	pending  []*job.Job
	statuses map[int64]job.Status
	reasons  map[int64]string
	rows     map[int64][]parserd.ReportRow

	claimErr      error
	inProgressErr error
	persistFail   map[int64]int
	persistCalls  map[int64]int
	claims        int

	notify chan struct{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		statuses:     make(map[int64]job.Status),
		reasons:      make(map[int64]string),
		rows:         make(map[int64][]parserd.ReportRow),
		persistFail:  make(map[int64]int),
		persistCalls: make(map[int64]int),
		notify:       make(chan struct{}, 16),
	}
}

func (db *fakeDB) add(id int64, clientID string) {
	db.mu.Lock()
	db.pending = append(db.pending, &job.Job{
		SubmissionID: id,
		ClientID:     clientID,
		PayloadPath:  fmt.Sprintf("/payloads/%d.xml", id),
		Status:       job.Pending,
	})
	db.statuses[id] = job.Pending
	db.mu.Unlock()
}

func (db *fakeDB) addAndNotify(id int64, clientID string) {
	db.add(id, clientID)
	db.notify <- struct{}{}
}

func (db *fakeDB) status(id int64) job.Status {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.statuses[id]
}

func (db *fakeDB) reason(id int64) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reasons[id]
}

func (db *fakeDB) claimCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.claims
}

type fakeSession struct {
	db *fakeDB
}

func (s *fakeSession) ClaimNext(ctx context.Context) (*job.Job, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	db.claims++
	if db.claimErr != nil {
		return nil, db.claimErr
	}
	if len(db.pending) == 0 {
		return nil, nil
	}
	jb := db.pending[0]
	db.pending = db.pending[1:]
	jb.Status = job.Claimed
	jb.ClaimedAt = time.Now()
	db.statuses[jb.SubmissionID] = job.Claimed
	return jb, nil
}

func (s *fakeSession) MarkInProgress(ctx context.Context, submissionID int64) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.inProgressErr != nil {
		return db.inProgressErr
	}
	if db.statuses[submissionID] != job.Claimed {
		return parserd.ErrSubmissionLost
	}
	db.statuses[submissionID] = job.InProgress
	return nil
}

func (s *fakeSession) PersistReport(ctx context.Context, jb *job.Job, rows []parserd.ReportRow) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	db.persistCalls[jb.SubmissionID]++
	if db.persistFail[jb.SubmissionID] > 0 {
		db.persistFail[jb.SubmissionID]--
		return fmt.Errorf("connection reset")
	}
	if db.statuses[jb.SubmissionID] != job.InProgress {
		return parserd.ErrSubmissionLost
	}
	db.rows[jb.SubmissionID] = rows
	db.statuses[jb.SubmissionID] = job.Succeeded
	return nil
}

func (s *fakeSession) MarkFailed(ctx context.Context, submissionID int64, reason string) error {
	return s.finish(submissionID, job.Failed, reason)
}

func (s *fakeSession) MarkRejected(ctx context.Context, submissionID int64, reason string) error {
	return s.finish(submissionID, job.Rejected, reason)
}

func (s *fakeSession) finish(submissionID int64, status job.Status, reason string) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.statuses[submissionID].Terminal() {
		return parserd.ErrSubmissionLost
	}
	db.statuses[submissionID] = status
	db.reasons[submissionID] = reason
	return nil
}

func (s *fakeSession) Close() error {
	return nil
}

type fakeListener struct {
	notify chan struct{}
}

func (l *fakeListener) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.notify:
		return nil
	case <-timer.C:
		return parserd.ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *fakeListener) Close() error {
	return nil
}

type fakeGateway struct {
	db *fakeDB

	mu          sync.Mutex
	connects    int
	failConnect int // 1-based first connect call that fails (later ones fail too), 0 = never
}

func (g *fakeGateway) Connect(ctx context.Context) (parserd.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects++
	if g.failConnect != 0 && g.connects >= g.failConnect {
		return nil, parserd.ErrUnavailable
	}
	return &fakeSession{db: g.db}, nil
}

func (g *fakeGateway) Listen(ctx context.Context, channel string) (parserd.Listener, error) {
	return &fakeListener{notify: g.db.notify}, nil
}

// transformFunc adapts a function to parserd.Transformer.
type transformFunc func(ctx context.Context, payloadPath string) (*parserd.Report, error)

func (f transformFunc) Transform(ctx context.Context, payloadPath string) (*parserd.Report, error) {
	return f(ctx, payloadPath)
}

func okTransformer() parserd.Transformer {
	return transformFunc(func(ctx context.Context, payloadPath string) (*parserd.Report, error) {
		return &parserd.Report{
			Document: []byte("<report/>"),
			Rows:     []parserd.ReportRow{{Section: "summary", Name: "source", Value: payloadPath}},
		}, nil
	})
}

// testConfig returns a service configuration with intervals tightened
// for tests.
func testConfig(t *testing.T, workers int) parserd.Config {
	t.Helper()
	return parserd.Config{
		Workers:        workers,
		QueueCapacity:  5,
		EnqueueBackoff: 10 * time.Millisecond,
		WaitInterval:   20 * time.Millisecond,
		ReportRoot:     t.TempDir(),
		Retry: parserd.BackoffConfig{
			MaxAttempts:     3,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2,
		},
	}
}

func waitStatus(t *testing.T, db *fakeDB, id int64, want job.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if db.status(id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("submission %d: expected %v, got %v", id, want, db.status(id))
}

func waitDone(t *testing.T, svc *parserd.Service) {
	t.Helper()
	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop in time")
	}
}
