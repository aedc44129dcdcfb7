package sql_test

import (
	"context"
	dbsql "database/sql"
	"path/filepath"
	"testing"

	"github.com/rteval/parserd"
	gsql "github.com/rteval/parserd/sql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// newTestDB opens a throwaway SQLite database. A file in the test's
// temporary directory is used instead of :memory: because sessions hold
// dedicated connections and each in-memory connection would see its own
// database.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parserd.db")
	sqlDB, err := dbsql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	ctx := context.Background()
	if err := gsql.InitDB(ctx, db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSession(t *testing.T, db *bun.DB) parserd.Session {
	t.Helper()
	session, err := gsql.NewGateway(db).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func submit(t *testing.T, db *bun.DB, clientID, payloadPath string) int64 {
	t.Helper()
	id, err := gsql.NewSubmitter(db).Submit(context.Background(), clientID, payloadPath)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func submissionReason(t *testing.T, db *bun.DB, id int64) string {
	t.Helper()
	var reason dbsql.NullString
	err := db.NewSelect().
		Table("submissions").
		Column("reason").
		Where("id = ?", id).
		Scan(context.Background(), &reason)
	if err != nil {
		t.Fatal(err)
	}
	return reason.String
}

func countReportRows(t *testing.T, db *bun.DB, id int64) int {
	t.Helper()
	count, err := db.NewSelect().
		Table("report_rows").
		Where("submission_id = ?", id).
		Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return count
}
