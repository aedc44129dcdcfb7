package sql

import (
	"time"

	"github.com/rteval/parserd/job"

	"github.com/uptrace/bun"
)

type submissionModel struct {
	bun.BaseModel `bun:"table:submissions"`
	ID            int64 `bun:"id,pk,autoincrement"`

	ClientID    string `bun:"client_id,notnull"`
	PayloadPath string `bun:"payload_path,notnull"`

	Status job.Status `bun:"status,notnull,default:1"`
	Reason string     `bun:"reason,nullzero"`

	SubmittedAt time.Time  `bun:"submitted_at,nullzero,notnull,default:current_timestamp"`
	ClaimedAt   *time.Time `bun:"claimed_at,nullzero,default:null"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (sm *submissionModel) toJob() *job.Job {
	ret := &job.Job{
		SubmissionID: sm.ID,
		ClientID:     sm.ClientID,
		PayloadPath:  sm.PayloadPath,
		Status:       sm.Status,
		SubmittedAt:  sm.SubmittedAt,
	}
	if sm.ClaimedAt != nil {
		ret.ClaimedAt = *sm.ClaimedAt
	}
	return ret
}

type reportRowModel struct {
	bun.BaseModel `bun:"table:report_rows"`
	ID            int64 `bun:"id,pk,autoincrement"`

	SubmissionID int64  `bun:"submission_id,notnull"`
	Section      string `bun:"section,notnull"`
	Name         string `bun:"name,notnull"`
	Value        string `bun:"value"`
}
