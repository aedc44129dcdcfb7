package sql

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createSubmissionsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*submissionModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createReportRowsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*reportRowModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createClaimIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*submissionModel)(nil)).
		Index("idx_submissions_status_id").
		Column("status", "id").
		IfNotExists().
		Exec(ctx)
	return err
}

func createUpdatedIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*submissionModel)(nil)).
		Index("idx_submissions_status_updated").
		Column("status", "updated_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createRowsIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*reportRowModel)(nil)).
		Index("idx_report_rows_submission").
		Column("submission_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createSubmissionsTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createReportRowsTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createClaimIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createUpdatedIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createRowsIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// InitDB initializes the database schema required by the daemon.
//
// It creates the submissions and report_rows tables and their indexes
// inside a single transaction. If any step fails, the transaction is
// rolled back.
//
// InitDB is idempotent and may be safely called multiple times. It does
// not drop or modify existing tables beyond creating missing objects.
//
// The caller is responsible for providing a properly configured *bun.DB.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics if initialization fails.
//
// This helper is intended for application bootstrap code where failure
// to initialize schema is considered unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}
