// Package semaphore provides a counting admission gate with strict FIFO
// fairness. Releases wake the longest-waiting acquirer first, so no waiter
// is starved as long as releases keep occurring. It backs the batch
// executor's concurrency cap but is usable on its own wherever bounded
// admission is needed.
package semaphore

import (
	"context"
	"sync"
)

// Semaphore is a fixed-capacity counting semaphore. Capacity is set at
// construction and never changes. One Release is expected per successful
// Acquire; a double release is a caller bug and is not guarded against.
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	free     int
	waiters  []chan struct{}
}

// New creates a semaphore with the given capacity, clamped to at least 1.
func New(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{capacity: capacity, free: capacity}
}

// Acquire blocks until a permit is available or ctx is done. On success the
// caller holds one permit and must release it exactly once. On cancellation
// the queue slot is abandoned and ctx.Err() is returned.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	// Nobody may overtake the queue: the fast path applies only while no
	// waiter is pending.
	if s.free > 0 && len(s.waiters) == 0 {
		s.free--
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	select {
	case <-ready:
		// A release handed the permit over concurrently with the
		// cancellation; pass it on so it is not lost.
		s.mu.Unlock()
		s.Release()
	default:
		s.removeWaiterLocked(ready)
		s.mu.Unlock()
	}
	return ctx.Err()
}

// TryAcquire takes a permit without blocking, reporting whether one was
// available. Pending waiters keep priority over new callers.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.free > 0 && len(s.waiters) == 0 {
		s.free--
		return true
	}
	return false
}

// Release returns a permit. If waiters exist the permit is handed directly
// to the oldest one instead of joining the free pool. The handoff happens
// under the mutex so a cancelling waiter observes either a closed channel
// or its own queue slot, never neither.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(ready)
		return
	}
	s.free++
}

// Available reports the number of currently free permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

// Waiting reports the number of queued acquirers.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Capacity returns the fixed capacity the semaphore was built with.
func (s *Semaphore) Capacity() int { return s.capacity }

// removeWaiterLocked drops a cancelled waiter from the queue; caller must
// hold the mutex.
func (s *Semaphore) removeWaiterLocked(ready chan struct{}) {
	for i, w := range s.waiters {
		if w == ready {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
