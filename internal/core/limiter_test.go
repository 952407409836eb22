package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// gatedBackend blocks every fetch until release is closed.
func gatedBackend(release <-chan struct{}, started chan<- struct{}) *fakeBackend {
	return &fakeBackend{
		fetchFn: func(ctx context.Context, key string) (FetchResult, error) {
			if started != nil {
				started <- struct{}{}
			}
			select {
			case <-release:
				return FetchResult{}, nil
			case <-ctx.Done():
				return FetchResult{}, ctx.Err()
			}
		},
	}
}

func TestLimitedBackend_PassesThrough(t *testing.T) {
	next := &fakeBackend{records: makeRecords(3), pageSize: 25}
	limited := NewLimitedBackend(next, 2, time.Second)

	result, err := limited.FetchRecords(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if len(result.Sensors) != 3 || result.DefaultPageSize != 25 {
		t.Errorf("got %d sensors, page size %d", len(result.Sensors), result.DefaultPageSize)
	}

	if err := limited.DeleteRecord(context.Background(), "s-1"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if len(next.deletes) != 1 || next.deletes[0] != "s-1" {
		t.Errorf("deletes = %v", next.deletes)
	}

	if got := limited.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d after calls returned, want 0", got)
	}
}

func TestLimitedBackend_BusyWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	limited := NewLimitedBackend(gatedBackend(release, started), 1, 100*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := limited.FetchRecords(context.Background(), "a")
		done <- err
	}()
	<-started

	start := time.Now()
	_, err := limited.FetchRecords(context.Background(), "b")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBackendBusy) {
		t.Errorf("expected ErrBackendBusy, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("gave up too fast: %v", elapsed)
	}
	if got := MapError(err).Code; got != "REQ003" {
		t.Errorf("MapError code = %s, want REQ003", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first fetch error = %v", err)
	}
}

func TestLimitedBackend_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	var mu sync.Mutex
	inFlight, maxObserved := 0, 0

	next := &fakeBackend{
		fetchFn: func(ctx context.Context, key string) (FetchResult, error) {
			mu.Lock()
			inFlight++
			maxObserved = max(maxObserved, inFlight)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return FetchResult{}, nil
		},
	}
	limited := NewLimitedBackend(next, maxConcurrent, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limited.FetchRecords(context.Background(), ""); err != nil {
				t.Errorf("FetchRecords failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limited.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestLimitedBackend_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)
	limited := NewLimitedBackend(gatedBackend(release, started), 1, 5*time.Second)

	go limited.FetchRecords(context.Background(), "holder")
	<-started

	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limited.DeleteRecord(cancelCtx, "s-1")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("DeleteRecord did not return after context cancellation")
	}
}

func TestLimitedBackend_WaitForDrain(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	limited := NewLimitedBackend(gatedBackend(release, started), 2, time.Second)

	for i := 0; i < 2; i++ {
		go limited.FetchRecords(context.Background(), "")
	}
	<-started
	<-started

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limited.WaitForDrain(context.Background())
	}()

	select {
	case <-drainDone:
		t.Error("WaitForDrain returned while calls were in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after calls returned")
	}
}

func TestLimitedBackend_WaitForDrain_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)
	limited := NewLimitedBackend(gatedBackend(release, started), 1, time.Second)

	go limited.FetchRecords(context.Background(), "")
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limited.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestLimitedBackend_Status(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	limited := NewLimitedBackend(gatedBackend(release, started), 3, time.Second)

	status := limited.Status()
	if status.Active != 0 || status.Available != 3 || status.MaxConcurrent != 3 {
		t.Errorf("initial status = %+v", status)
	}

	for i := 0; i < 2; i++ {
		go limited.FetchRecords(context.Background(), "")
	}
	<-started
	<-started

	status = limited.Status()
	if status.Active != 2 {
		t.Errorf("Active = %d, want 2", status.Active)
	}
	if status.Available != 1 {
		t.Errorf("Available = %d, want 1", status.Available)
	}

	close(release)
}

func TestLimitedBackend_DefaultValues(t *testing.T) {
	limited := NewLimitedBackend(&fakeBackend{}, 0, 0)

	if got := limited.Status().MaxConcurrent; got != DefaultMaxConcurrentCalls {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentCalls)
	}
	if limited.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", limited.maxWait, DefaultMaxWaitTime)
	}
}
