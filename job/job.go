package job

import (
	"time"
)

// Job represents one claimed submission handed from the producer to a
// worker.
//
// SubmissionID is the database-assigned identifier, unique and monotonic
// per submission.
//
// ClientID identifies the submitter and selects the report subdirectory
// the worker writes into. Two jobs with the same ClientID are never
// processed concurrently.
//
// PayloadPath is the filesystem location of the submitted XML blob.
//
// Status reflects the claim state of the database row when the snapshot
// was taken. A Job delivered to a worker always has Status Claimed; the
// row was transitioned to Claimed in the same statement that produced
// the snapshot.
//
// SubmittedAt records when the client uploaded the submission.
// ClaimedAt records when the producer claimed it.
//
// Mutating Job fields does not change queue state; transitions must be
// performed through a gateway Session.
type Job struct {
	SubmissionID int64
	ClientID     string
	PayloadPath  string

	Status Status

	SubmittedAt time.Time
	ClaimedAt   time.Time
}
