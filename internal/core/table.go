package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// TableOptions configures a RecordTable. Zero values use package defaults.
type TableOptions struct {
	PageSize    int           // page size before the first load
	QuietPeriod time.Duration // debounce delay for search input
	LoadTimeout time.Duration // deadline for reloads fired by the debounce timer
	Logger      *slog.Logger
}

// RecordTable is the state of one sensor table: the full dataset from the
// last successful load, pagination over it, and the current search key.
//
// All methods are safe for concurrent use. Backend calls run without the
// lock held; their results are applied under it.
type RecordTable struct {
	backend     Backend
	scheduler   *Scheduler
	loadTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	dataset   []Record
	pager     *Pager
	searchKey string
	seq       uint64 // sequence number of the latest dispatched load
	loaded    bool
	lastErr   error
	lastUsed  time.Time
}

// NewRecordTable creates an empty table reading from backend.
// Call Load to populate it.
func NewRecordTable(backend Backend, opts TableOptions) *RecordTable {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &RecordTable{
		backend:     backend,
		scheduler:   NewScheduler(opts.QuietPeriod),
		loadTimeout: opts.LoadTimeout,
		logger:      opts.Logger,
		pager:       NewPager(opts.PageSize),
		lastUsed:    time.Now(),
	}
}

// Load fetches every record matching the current search key and replaces
// the dataset with them.
//
// On success the page size becomes the backend's suggestion (when positive)
// and the table returns to page 1. On failure the previous dataset and
// pagination are kept and the error is reported in View until the next
// successful load.
//
// Loads are tagged with a sequence number. If another load was dispatched
// while this one was in flight, this result is dropped and ErrStaleResponse
// is returned.
func (t *RecordTable) Load(ctx context.Context) error {
	t.mu.Lock()
	t.seq++
	seq, key := t.seq, t.searchKey
	t.touch()
	t.mu.Unlock()

	result, err := t.backend.FetchRecords(ctx, key)

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		t.logger.Debug("discarding stale load",
			"seq", seq,
			"latest_seq", t.seq,
			"search_key", key,
		)
		return ErrStaleResponse
	}

	if err != nil {
		t.lastErr = fmt.Errorf("load sensors: %w", err)
		return t.lastErr
	}

	t.dataset = NormalizeRecords(result.Sensors)
	t.pager.Reset(len(t.dataset), result.DefaultPageSize)
	t.loaded = true
	t.lastErr = nil

	t.logger.Debug("sensors loaded",
		"seq", seq,
		"search_key", key,
		"records", len(t.dataset),
		"page_size", t.pager.PageSize(),
	)
	return nil
}

// OnSearchInput records a new search key and schedules a debounced reload.
// Input equal to the current key is ignored. Returns true if a reload was
// scheduled.
func (t *RecordTable) OnSearchInput(value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.touch()
	if value == t.searchKey {
		return false
	}

	t.searchKey = value
	t.scheduler.Schedule(t.reload)
	return true
}

// reload is the debounced job scheduled by OnSearchInput.
func (t *RecordTable) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), t.loadTimeout)
	defer cancel()

	if err := t.Load(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		t.logger.Warn("search reload failed", "error", err)
	}
}

// SetPageSize changes the page size and returns to page 1.
func (t *RecordTable) SetPageSize(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()
	return t.pager.SetPageSize(n)
}

// GoFirst moves to page 1. Returns false at the boundary.
func (t *RecordTable) GoFirst() bool { return t.navigate((*Pager).First) }

// GoLast moves to the last page. Returns false at the boundary.
func (t *RecordTable) GoLast() bool { return t.navigate((*Pager).Last) }

// GoPrev moves back one page. Returns false at the boundary.
func (t *RecordTable) GoPrev() bool { return t.navigate((*Pager).Prev) }

// GoNext moves forward one page. Returns false at the boundary.
func (t *RecordTable) GoNext() bool { return t.navigate((*Pager).Next) }

func (t *RecordTable) navigate(move func(*Pager) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()
	return move(t.pager)
}

// DeleteRow deletes a record through the backend and, only once the backend
// confirms, removes it from the dataset.
//
// Returns true if a local record was removed. An identifier the dataset
// does not hold changes nothing locally. A backend failure leaves the table
// untouched.
func (t *RecordTable) DeleteRow(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrMissingRecordID
	}
	id = canonicalID(t.backend, id)

	t.mu.Lock()
	t.touch()
	t.mu.Unlock()

	if err := t.backend.DeleteRecord(ctx, id); err != nil {
		return false, fmt.Errorf("delete sensor %s: %w", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := slices.IndexFunc(t.dataset, func(r Record) bool { return r.ID() == id })
	if idx < 0 {
		t.logger.Debug("deleted sensor not in dataset", "id", id)
		return false, nil
	}

	t.dataset = slices.Delete(t.dataset, idx, idx+1)
	t.pager.SetTotalCount(len(t.dataset))
	return true, nil
}

// View returns a snapshot of the visible page and pagination state.
func (t *RecordTable) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := VisiblePage(t.dataset, t.pager.Page(), t.pager.PageSize())

	v := View{
		Records:       slices.Clone(page.Records),
		Page:          t.pager.Page(),
		PageSize:      t.pager.PageSize(),
		TotalCount:    t.pager.TotalCount(),
		TotalPages:    t.pager.TotalPages(),
		StartRecord:   page.StartRecord,
		EndRecord:     page.EndRecord,
		SearchKey:     t.searchKey,
		SearchPending: t.scheduler.Pending(),
		Loaded:        t.loaded,
	}
	if t.lastErr != nil {
		msg := MapError(t.lastErr)
		v.Error = &msg
	}
	if v.Records == nil {
		v.Records = []Record{}
	}
	return v
}

// Export serializes the full dataset, ignoring pagination.
// Returns false when there is nothing to export.
func (t *RecordTable) Export() ([]byte, bool) {
	t.mu.Lock()
	snapshot := slices.Clone(t.dataset)
	t.touch()
	t.mu.Unlock()

	return ExportCSV(snapshot)
}

// SearchKey returns the current search key.
func (t *RecordTable) SearchKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.searchKey
}

// LastError returns the error of the most recent failed load, or nil.
func (t *RecordTable) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// LastUsed returns when the table was last accessed.
func (t *RecordTable) LastUsed() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed
}

// Close cancels any pending debounced reload.
func (t *RecordTable) Close() {
	t.scheduler.Cancel()
}

// touch must be called with t.mu held.
func (t *RecordTable) touch() {
	t.lastUsed = time.Now()
}
