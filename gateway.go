package parserd

import (
	"context"
	"errors"
	"time"

	"github.com/rteval/parserd/job"
)

var (
	// ErrUnavailable indicates that the database cannot be reached.
	//
	// Returned by Gateway.Connect when opening a session fails. At daemon
	// startup this is fatal; worker session implementations are expected
	// to reconnect on dropped connections instead of surfacing it.
	ErrUnavailable = errors.New("database unavailable")

	// ErrWaitTimeout indicates that a notification wait elapsed without
	// a notification arriving.
	//
	// The producer treats it as a signal to re-check shutdown and keep
	// waiting; it is never fatal.
	ErrWaitTimeout = errors.New("notification wait timeout")

	// ErrSubmissionLost indicates that a submission row no longer exists
	// or is not in the state the transition expects.
	//
	// This may occur if the row was concurrently modified by an operator
	// or another daemon instance.
	ErrSubmissionLost = errors.New("submission lost")

	// ErrBadStatus indicates that an invalid submission status was
	// supplied to Cleaner.
	//
	// Cleaner implementations restrict deletion to terminal states.
	// Supplying Pending, Claimed or InProgress results in ErrBadStatus.
	ErrBadStatus = errors.New("bad submission status")
)

// ReportRow is one structured fact extracted from a transformed report,
// destined for the report tables.
//
// Section groups related rows (for example one measurement block of the
// report); Name and Value carry the individual datum. The coordination
// core treats rows as opaque and only moves them from the transformer to
// the session.
type ReportRow struct {
	Section string
	Name    string
	Value   string
}

// Session is an exclusively owned database connection.
//
// One session per goroutine: the producer owns one, every worker owns its
// own, and sessions are never shared. Implementations are responsible for
// reconnecting worker sessions on dropped connections; the producer
// treats any session error as fatal.
type Session interface {

	// ClaimNext selects the oldest Pending submission, transitions it to
	// Claimed and returns its snapshot, all in a single transaction.
	//
	// It returns (nil, nil) when no Pending submission exists. The
	// transition must be race-safe against concurrent claimers, although
	// within one daemon only the producer claims.
	ClaimNext(ctx context.Context) (*job.Job, error)

	// MarkInProgress transitions a Claimed submission to InProgress.
	//
	// Workers call it once they start handling a job. If the row is
	// missing or not Claimed, ErrSubmissionLost is returned.
	MarkInProgress(ctx context.Context, submissionID int64) error

	// PersistReport stores the extracted report rows and transitions the
	// submission to Succeeded in one transaction.
	//
	// On failure nothing is persisted and the submission state is
	// unchanged, so the caller may retry.
	PersistReport(ctx context.Context, jb *job.Job, rows []ReportRow) error

	// MarkFailed transitions a submission to Failed and records the
	// reason. Failed is terminal for the daemon; resubmission is a
	// client decision.
	MarkFailed(ctx context.Context, submissionID int64, reason string) error

	// MarkRejected transitions a submission to Rejected and records the
	// reason. Rejected is reserved for structurally invalid submissions
	// that can never succeed on retry.
	MarkRejected(ctx context.Context, submissionID int64, reason string) error

	// Close releases the underlying connection.
	Close() error
}

// Listener blocks on a database notification channel.
//
// The producer parks in Wait while the submission queue is empty and is
// woken when the database announces a new row.
type Listener interface {

	// Wait blocks until a notification arrives, the timeout elapses, or
	// ctx is canceled.
	//
	// It returns nil when notified, ErrWaitTimeout when the timeout
	// elapsed, and the ctx error when canceled. Any other error means
	// the notification channel is broken.
	Wait(ctx context.Context, timeout time.Duration) error

	// Close unsubscribes and releases the listener's connection.
	Close() error
}

// Gateway opens the database capabilities the daemon needs.
//
// The coordination core holds a Gateway and nothing else about the
// database; the sql subpackage provides the PostgreSQL implementation.
type Gateway interface {

	// Connect opens a new exclusively owned session.
	//
	// Connect wraps connection failures in ErrUnavailable.
	Connect(ctx context.Context) (Session, error)

	// Listen subscribes to the named notification channel.
	Listen(ctx context.Context, channel string) (Listener, error)
}

// Cleaner permanently removes terminal submissions from storage.
//
// Cleaner is intended for retention management. It does not participate
// in normal processing and must not touch non-terminal submissions.
type Cleaner interface {

	// Clean deletes submissions matching the given status and time
	// condition, along with their report rows.
	//
	// If status is job.Unknown (zero value), all terminal submissions
	// are eligible. A non-terminal status yields ErrBadStatus.
	//
	// If before is non-nil, only submissions last updated at or before
	// *before are deleted.
	//
	// Clean returns the number of deleted submissions.
	Clean(ctx context.Context, status job.Status, before *time.Time) (int64, error)
}
