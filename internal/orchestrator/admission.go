package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// admission caps the number of active assignments. Arrivals beyond the limit
// wait in FIFO order; a waiter whose context ends is removed from the queue.
type admission struct {
	sem     *semaphore.Weighted
	limit   int
	active  atomic.Int64
	waiting atomic.Int64
}

func newAdmission(limit int) *admission {
	if limit < 1 {
		limit = 1
	}
	return &admission{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// acquire blocks until a slot is free. TryAcquire only succeeds when nobody is
// queued, so a new arrival never overtakes a waiter.
func (a *admission) acquire(ctx context.Context) error {
	if a.sem.TryAcquire(1) {
		a.active.Add(1)
		return nil
	}

	a.waiting.Add(1)
	err := a.sem.Acquire(ctx, 1)
	a.waiting.Add(-1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueCancelled, err)
	}

	a.active.Add(1)
	return nil
}

func (a *admission) release() {
	a.active.Add(-1)
	a.sem.Release(1)
}

func (a *admission) queued() int {
	return int(a.waiting.Load())
}

func (a *admission) inFlight() int {
	return int(a.active.Load())
}
