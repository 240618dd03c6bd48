// Package clock abstracts time so the scheduler, registry and memory store can
// run against a virtual clock in tests.
package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock is the subset of the time package used by Warren components.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real is a Clock backed by the time package.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// After waits for the duration to elapse and then sends the current time.
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sleep blocks for d on the given clock, returning early with ctx.Err() if the
// context is cancelled first. A non-positive duration returns immediately.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// Fake is a manually advanced Clock. Timers created with After fire only when
// Advance moves the clock to or past their deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake clock's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives the fake time once the clock has been
// advanced by at least d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := f.now.Add(d)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Advance moves the clock forward and fires every timer whose deadline has passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now

	sort.Slice(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})

	remaining := f.waiters[:0]
	var due []waiter
	for _, w := range f.waiters {
		if !w.deadline.After(now) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
	f.mu.Unlock()

	for _, w := range due {
		w.ch <- now
	}
}

// Set moves the clock to t without firing timers that are not yet due.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	delta := t.Sub(f.now)
	f.mu.Unlock()
	if delta > 0 {
		f.Advance(delta)
	}
}

// Pending reports how many timers are waiting on the fake clock.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}
