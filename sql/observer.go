package sql

import (
	"context"
	dbsql "database/sql"
	"errors"

	"github.com/rteval/parserd/job"

	"github.com/uptrace/bun"
)

// Observer provides read-only access to submission state.
//
// Observer does not modify rows and does not participate in claim
// transitions. It backs the status command and diagnostic tooling.
//
// Returned Job values are snapshots of storage state at the time of the
// query; mutating them does not affect the queue.
type Observer struct {
	db *bun.DB
}

// NewObserver creates an Observer over the provided database handle.
//
// Schema initialization must be completed before using Observer.
func NewObserver(db *bun.DB) *Observer {
	return &Observer{
		db: db,
	}
}

// Get retrieves a submission by its identifier.
//
// If no submission with the given id exists, Get returns (nil, nil).
func (o *Observer) Get(ctx context.Context, submissionID int64) (*job.Job, error) {
	var ret submissionModel
	err := o.db.NewSelect().
		Model(&ret).
		Where("id = ?", submissionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ret.toJob(), nil
}

// List returns up to limit submissions filtered by status, oldest first.
//
// If status is job.Unknown (zero value), no status filter is applied.
// If limit is zero or negative, no LIMIT clause is added.
//
// List is intended for administrative or diagnostic use and should not
// be used as part of normal queue consumption.
func (o *Observer) List(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	var models []*submissionModel
	query := o.db.NewSelect().Model(&models).OrderExpr("id ASC")
	if status != 0 {
		query.Where("status = ?", status)
	}
	if limit > 0 {
		query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*job.Job, 0, len(models))
	for _, m := range models {
		ret = append(ret, m.toJob())
	}
	return ret, nil
}
