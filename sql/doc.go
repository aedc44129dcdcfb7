// Package sql provides the PostgreSQL-backed implementation of the
// parserd storage contracts.
//
// It implements the Gateway/Session pair used by the daemon core, the
// notification Listener over the database's LISTEN/NOTIFY channel, and
// the administrative Submitter, Observer and Cleaner types used by the
// CLI and the retention sweeper.
//
// Claiming uses a single UPDATE ... RETURNING statement and the other
// state transitions use single UPDATE statements guarded by the expected
// current status, so that claiming and marking are race-safe across
// concurrent daemons. The
// schema is created by InitDB and consists of the submissions table and
// the report_rows table.
//
// Tests run against a SQLite database file in a temporary directory
// through the same bun models; only the notification listener is
// PostgreSQL-specific.
package sql
