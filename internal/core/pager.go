package core

import "fmt"

// Pager holds pagination state over an in-memory dataset.
//
// Invariant: 1 <= page <= max(TotalPages(), 1). Every mutation clamps the
// page back into that range.
type Pager struct {
	page       int
	pageSize   int
	totalCount int
}

// NewPager returns a pager on page 1 with no records.
// A non-positive pageSize falls back to DefaultPageSize.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{page: 1, pageSize: pageSize}
}

// Page returns the current 1-based page number.
func (p *Pager) Page() int { return p.page }

// PageSize returns the number of records per page.
func (p *Pager) PageSize() int { return p.pageSize }

// TotalCount returns the number of records being paged.
func (p *Pager) TotalCount() int { return p.totalCount }

// TotalPages returns ceil(totalCount/pageSize); zero when there are no records.
func (p *Pager) TotalPages() int {
	return TotalPages(p.totalCount, p.pageSize)
}

// TotalPages computes ceil(count/pageSize) for non-negative counts.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Reset replaces the record count after a fresh load and returns to page 1.
// A positive pageSize replaces the current one.
func (p *Pager) Reset(totalCount, pageSize int) {
	if pageSize > 0 {
		p.pageSize = pageSize
	}
	p.totalCount = max(totalCount, 0)
	p.page = 1
}

// SetPageSize changes the page size and returns to page 1.
func (p *Pager) SetPageSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	p.pageSize = n
	p.page = 1
	return nil
}

// SetTotalCount updates the record count and clamps the page into range.
func (p *Pager) SetTotalCount(n int) {
	p.totalCount = max(n, 0)
	p.clamp()
}

func (p *Pager) clamp() {
	last := max(p.TotalPages(), 1)
	if p.page > last {
		p.page = last
	}
	if p.page < 1 {
		p.page = 1
	}
}

// First moves to page 1. Returns false if nothing changed.
func (p *Pager) First() bool {
	if p.page == 1 {
		return false
	}
	p.page = 1
	return true
}

// Last moves to the final page. Returns false if already there or there
// are no pages.
func (p *Pager) Last() bool {
	last := p.TotalPages()
	if last == 0 || p.page == last {
		return false
	}
	p.page = last
	return true
}

// Prev moves back one page, stopping at page 1.
func (p *Pager) Prev() bool {
	if p.page <= 1 {
		return false
	}
	p.page--
	return true
}

// Next moves forward one page, stopping at the final page.
func (p *Pager) Next() bool {
	if p.page >= p.TotalPages() {
		return false
	}
	p.page++
	return true
}

// Page is the visible window of a dataset.
type Page struct {
	Records []Record

	// StartRecord is the 1-based number of the first visible record.
	// It is 1 even when the dataset is empty.
	StartRecord int

	// EndRecord is the number of the last visible record (exclusive end index).
	EndRecord int
}

// VisiblePage slices dataset[(page-1)*pageSize : min(page*pageSize, len)].
// The returned slice shares the dataset's backing array.
func VisiblePage(dataset []Record, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 0 {
		pageSize = 0
	}

	end := min(page*pageSize, len(dataset))
	start := min((page-1)*pageSize, end)

	return Page{
		Records:     dataset[start:end:end],
		StartRecord: start + 1,
		EndRecord:   end,
	}
}
