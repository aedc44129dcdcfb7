package parserd

import (
	"github.com/rteval/parserd/job"
)

// Queue is the bounded in-memory handoff between the producer and the
// worker pool.
//
// Exactly one goroutine enqueues (the producer); any number of workers
// dequeue. Jobs are delivered in FIFO order across all consumers.
//
// The queue is deliberately volatile. The database row, already in the
// Claimed state when a job enters the queue, is the durable record; a
// job must therefore never be dropped silently, which is why TryEnqueue
// reports a full queue instead of discarding.
type Queue struct {
	ch chan *job.Job
}

// NewQueue creates a queue holding at most capacity jobs.
//
// Capacity must be at least 1. Typical callers derive it from
// the host's message queue depth hint (see internal.QueueDepthHint).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan *job.Job, capacity),
	}
}

// TryEnqueue attempts to add a job without blocking.
//
// It returns false when the queue is already at capacity. The caller is
// expected to back off and retry with the same job; the claimed database
// row must not be lost.
func (q *Queue) TryEnqueue(jb *job.Job) bool {
	select {
	case q.ch <- jb:
		return true
	default:
		return false
	}
}

// Dequeue removes the oldest job, blocking until one is available or
// shutdown is triggered.
//
// Jobs still buffered when shutdown fires are drained: Dequeue keeps
// returning them until the queue is empty, and only then reports
// ok = false. Every worker blocked in Dequeue is woken by the shutdown
// transition.
func (q *Queue) Dequeue(sd *Shutdown) (*job.Job, bool) {
	// Fast path: buffered jobs are handed out even after shutdown.
	select {
	case jb := <-q.ch:
		return jb, true
	default:
	}
	select {
	case jb := <-q.ch:
		return jb, true
	case <-sd.Done():
		select {
		case jb := <-q.ch:
			return jb, true
		default:
			return nil, false
		}
	}
}

// Len returns the number of jobs currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
