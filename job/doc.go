// Package job defines the unit of work exchanged between the producer
// and the worker pool.
//
// A Job is the in-memory view of one submission row from the database
// queue. It carries the submission identity, the location of the uploaded
// XML payload, the submitting client, and the claim state of the row at
// the time it was read.
//
// Job values are snapshots. Mutating a Job does not change the underlying
// database row; state transitions must be performed through a gateway
// Session. Jobs are constructed by the storage layer when a submission is
// claimed and are not intended to be built manually by user code.
package job
