package parserd

import (
	"sync"
)

// Arbiter serialises access to the per-client report subtree.
//
// Each worker acquires a slot for the job's client before touching the
// client's report directory and releases it when the iteration ends.
// At most one worker holds a slot for a given client at any time; slots
// for different clients are independent.
//
// A worker holds at most one slot at a time, so the arbiter cannot
// deadlock. No global fairness is guaranteed beyond the condition
// broadcast.
type Arbiter struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]struct{}
}

// NewArbiter creates an empty arbiter.
func NewArbiter() *Arbiter {
	a := &Arbiter{
		held: make(map[string]struct{}),
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Acquire blocks until no other holder owns clientID, then records the
// hold and returns its slot token.
func (a *Arbiter) Acquire(clientID string) *Slot {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		if _, ok := a.held[clientID]; !ok {
			break
		}
		a.cond.Wait()
	}
	a.held[clientID] = struct{}{}
	return &Slot{
		arbiter:  a,
		clientID: clientID,
	}
}

// holds reports whether clientID is currently held. Test hook.
func (a *Arbiter) holds(clientID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.held[clientID]
	return ok
}

// Slot is the token returned by Acquire. Releasing it ends the hold.
type Slot struct {
	arbiter  *Arbiter
	clientID string
	released bool
}

// Release ends the hold and wakes waiters for the same client.
//
// Release is idempotent; releasing an already-released slot is a no-op.
// It runs on every exit path of a worker iteration, so double release
// must be harmless.
func (s *Slot) Release() {
	a := s.arbiter
	a.mu.Lock()
	defer a.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	delete(a.held, s.clientID)
	a.cond.Broadcast()
}
