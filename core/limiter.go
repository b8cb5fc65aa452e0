package core

import (
	"fmt"
	"sync"
)

// StageLimiter enforces a maximum number of stage executions per run.
type StageLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStageLimiter creates a new limiter with a max number of stage
// executions. If max == 0, unlimited executions are allowed.
func NewStageLimiter(max int) *StageLimiter {
	return &StageLimiter{max: max}
}

// Increment increases the execution counter and returns an error if the budget is exceeded.
func (sl *StageLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.count++
	if sl.max > 0 && sl.count > sl.max {
		return fmt.Errorf("exceeded max stage executions: %d", sl.max)
	}

	return nil
}

// Count returns the current number of stage executions recorded.
func (sl *StageLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Remaining returns how many executions are left before hitting the limit.
func (sl *StageLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.max == 0 {
		return -1 // unlimited
	}

	return sl.max - sl.count
}
