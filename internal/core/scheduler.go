package core

// scheduler.go provides the debounce timer behind search input.
//
// A Scheduler holds at most one pending job. Scheduling a new job cancels
// the previous one, so only the most recent job fires once the quiet period
// passes without further input. Each table owns its own Scheduler; there is
// no shared timer state.
//
// Cancellation applies to the timer only. A job that already started (for
// example an in-flight backend call) is not interrupted; RecordTable guards
// against its late result with load sequence numbers instead.

import (
	"sync"
	"time"
)

// stopper is the part of *time.Timer the scheduler uses.
type stopper interface {
	Stop() bool
}

// Scheduler runs the most recently scheduled job after a quiet period.
type Scheduler struct {
	quiet     time.Duration
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	pending stopper
	gen     uint64 // bumped on every Schedule/Cancel; a firing job must match it
}

// NewScheduler creates a scheduler with the given quiet period.
// A non-positive quiet period falls back to DefaultQuietPeriod.
func NewScheduler(quiet time.Duration) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Scheduler{
		quiet: quiet,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// QuietPeriod returns the delay applied to each scheduled job.
func (s *Scheduler) QuietPeriod() time.Duration {
	return s.quiet
}

// Schedule replaces any pending job with fn, to run after the quiet period.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.Stop()
	}

	s.gen++
	gen := s.gen
	s.pending = s.afterFunc(s.quiet, func() {
		s.mu.Lock()
		// A timer that fired while being replaced must not run its job.
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()

		fn()
	})
}

// Cancel drops the pending job, if any. Returns true if a job was dropped.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	s.gen++
	return true
}

// Pending reports whether a job is waiting for its quiet period to end.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
