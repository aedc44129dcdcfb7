package sql

import (
	"context"
	"errors"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"

	"github.com/uptrace/bun"
)

// Cleaner implements parserd.Cleaner.
//
// Cleaner permanently removes terminal submissions and their report
// rows. It is intended for retention management and administrative
// cleanup and does not interact with claim transitions.
type Cleaner struct {
	db *bun.DB
}

// NewCleaner creates a Cleaner over the provided database handle.
//
// Schema initialization must be completed before using Cleaner.
func NewCleaner(db *bun.DB) *Cleaner {
	return &Cleaner{
		db: db,
	}
}

// Clean deletes submissions matching the provided status and time
// filter, along with their report rows, in one transaction.
//
// Only terminal states are allowed:
//
//   - job.Succeeded
//   - job.Failed
//   - job.Rejected
//
// If status is job.Unknown (zero value), all three are eligible. A
// non-terminal status yields parserd.ErrBadStatus.
//
// If before is non-nil, only submissions with updated_at <= *before are
// deleted.
//
// Clean returns the number of deleted submissions.
func (c *Cleaner) Clean(ctx context.Context, status job.Status, before *time.Time) (int64, error) {
	if status != 0 && !status.Terminal() {
		return 0, parserd.ErrBadStatus
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	targets := tx.NewSelect().
		Model((*submissionModel)(nil)).
		Column("id")
	if status != 0 {
		targets.Where("status = ?", status)
	} else {
		targets.Where("status IN (?, ?, ?)", job.Succeeded, job.Failed, job.Rejected)
	}
	if before != nil {
		targets.Where("updated_at <= ?", before)
	}
	if _, err := tx.NewDelete().
		Model((*reportRowModel)(nil)).
		Where("submission_id IN (?)", targets).
		Exec(ctx); err != nil {
		return 0, errors.Join(err, tx.Rollback())
	}
	res, err := tx.NewDelete().
		Model((*submissionModel)(nil)).
		Where("id IN (?)", targets).
		Exec(ctx)
	if err != nil {
		return 0, errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		// The sweep already happened; report an unknown count rather
		// than an error.
		return -1, nil
	}
	return deleted, nil
}
