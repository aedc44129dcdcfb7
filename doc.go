// Package parserd implements the coordination core of the rteval report
// parsing daemon.
//
// # Overview
//
// The daemon continuously drains a shared submission queue held in a
// relational database. A single producer discovers new submissions via
// database notifications, claims them, and hands them through a bounded
// in-memory queue to a fixed pool of workers. Each worker transforms the
// submission's XML payload through an XSLT stylesheet into a persisted
// report file plus a set of structured database rows.
//
// The package separates the claim state of a submission (job.Job) from the
// capabilities injected at construction and defines a set of interfaces
// for claiming and transitioning submissions, waiting on notifications,
// transforming payloads and cleaning up terminal submissions.
//
// # Data Flow
//
//	DB submission queue -> Producer -> Queue -> Worker -> report file + report rows
//
// The database is the source of truth; the in-memory queue is volatile.
// A submission claimed by the producer is always driven to a terminal
// state (Succeeded, Failed or Rejected) before the daemon exits.
//
// # State Machine
//
// Submissions follow this lifecycle:
//
//	Pending    -> Claimed
//	Claimed    -> InProgress
//	InProgress -> Succeeded
//	InProgress -> Failed
//	InProgress -> Rejected
//
// A Claimed submission that never reaches a worker (shutdown interrupted
// its dispatch) goes directly to Failed.
//
// Terminal states are never retried by the daemon; resubmission is a
// client-side decision.
//
// # Concurrency Model
//
// One producer goroutine plus N worker goroutines. The producer owns one
// database session and the notification listener; each worker exclusively
// owns its own session. The compiled stylesheet is shared read-only.
// Writes to the per-client report subtree are serialised by the Arbiter,
// so two workers handling the same client never collide.
//
// Backpressure lives at the queue boundary: enqueue never blocks, and a
// full queue makes the producer back off while remaining responsive to
// shutdown.
//
// # Shutdown
//
// Shutdown is cooperative and monotonic. A single flag, set by the signal
// handler or by a fatal producer error, fans out to every loop: the
// producer stops claiming, workers drain the queue and exit, and the
// Service joins them all before closing sessions. In-flight transforms
// are never interrupted; losing a half-written report is worse than
// waiting.
//
// # Interfaces
//
// parserd defines the following primary interfaces:
//
//	Gateway     — open sessions and notification listeners
//	Session     — claim and transition submissions, persist reports
//	Listener    — block on the database notification channel
//	Transformer — run the stylesheet over a payload
//	Cleaner     — remove terminal submissions
//
// These allow storage implementations to be plugged in without coupling
// the coordination logic to a specific database. The sql subpackage
// provides the production PostgreSQL implementation.
package parserd
