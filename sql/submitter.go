package sql

import (
	"context"
	"strconv"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Submitter enqueues new submissions.
//
// Submitter is the write-side entry point used by the submit command and
// by tests. The daemon itself never inserts submissions; uploads arrive
// through the external submission service.
type Submitter struct {
	db *bun.DB
}

// NewSubmitter creates a Submitter over the provided database handle.
//
// Schema initialization must be completed before submitting.
func NewSubmitter(db *bun.DB) *Submitter {
	return &Submitter{
		db: db,
	}
}

// Submit inserts a Pending submission and announces it on the
// notification channel, returning the assigned submission id.
//
// The notification is only emitted on PostgreSQL; on other backends the
// row is claimed the next time the producer probes the queue (at startup,
// after dispatching a job, or after a notification).
func (s *Submitter) Submit(ctx context.Context, clientID, payloadPath string) (int64, error) {
	now := time.Now()
	model := &submissionModel{
		ClientID:    clientID,
		PayloadPath: payloadPath,
		Status:      job.Pending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	if s.db.Dialect().Name() == dialect.PG {
		payload := strconv.FormatInt(model.ID, 10)
		if err := pgdriver.Notify(ctx, s.db, parserd.Channel, payload); err != nil {
			return model.ID, err
		}
	}
	return model.ID, nil
}
