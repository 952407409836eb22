package core

// limiter.go bounds concurrent backend calls across all table sessions.
//
// Every session loads its own full result set, so a burst of page opens or
// searches can put many fetches in flight at once. LimitedBackend holds at
// most maxConcurrent calls open; callers wait up to maxWait for a slot and
// then fail with ErrBackendBusy. WaitForDrain lets shutdown finish the calls
// already running.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBackendBusy is returned when every backend slot stays occupied for the
// whole wait period.
var ErrBackendBusy = errors.New("backend busy: too many concurrent requests")

// DefaultMaxConcurrentCalls is the default limit for parallel backend calls.
const DefaultMaxConcurrentCalls = 8

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// LimitedBackend wraps a Backend with a semaphore.
type LimitedBackend struct {
	next      Backend
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimitedBackend allows at most maxConcurrent simultaneous calls to next.
// Non-positive arguments use the package defaults.
func NewLimitedBackend(next Backend, maxConcurrent int, maxWait time.Duration) *LimitedBackend {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCalls
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &LimitedBackend{
		next:      next,
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// FetchRecords implements Backend.
func (l *LimitedBackend) FetchRecords(ctx context.Context, searchKey string) (FetchResult, error) {
	if err := l.acquire(ctx); err != nil {
		return FetchResult{}, err
	}
	defer l.release()
	return l.next.FetchRecords(ctx, searchKey)
}

// DeleteRecord implements Backend.
func (l *LimitedBackend) DeleteRecord(ctx context.Context, id string) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return l.next.DeleteRecord(ctx, id)
}

// CanonicalID implements IDCanonicalizer by asking the wrapped backend.
func (l *LimitedBackend) CanonicalID(id string) string {
	return canonicalID(l.next, id)
}

// acquire waits for a slot. The caller must release it.
func (l *LimitedBackend) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Caller cancellation wins over our own wait timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBackendBusy
	}
}

func (l *LimitedBackend) release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of calls in flight.
func (l *LimitedBackend) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no calls are in flight or ctx is done.
func (l *LimitedBackend) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state for the health endpoint.
func (l *LimitedBackend) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
