// Package core provides the sensor table logic: loading, pagination,
// debounced search, row deletion and CSV export.
//
// The package has no HTTP or storage dependencies. Data comes from a
// [Backend], which the store (PostgreSQL) and platform (REST) packages
// implement, and results are rendered by the web package from [View]
// snapshots.
//
// # Record Table
//
// A [RecordTable] holds the complete result of the last search in memory.
// Pagination never goes back to the backend:
//
//	table := core.NewRecordTable(backend, core.TableOptions{})
//	if err := table.Load(ctx); err != nil {
//	    // previous data is kept; View().Error carries the user message
//	}
//	table.SetPageSize(25)
//	table.GoNext()
//	view := table.View() // records 26-50
//
// # Search
//
// [RecordTable.OnSearchInput] stores the key and schedules a reload after
// a quiet period ([DefaultQuietPeriod]). Input arriving during the quiet
// period replaces the pending reload, so a burst of keystrokes causes one
// backend call with the final value.
//
// Loads are numbered. A response that arrives after a newer load was
// dispatched is discarded with [ErrStaleResponse], so a slow answer to an
// old search cannot overwrite a newer one.
//
// # Export
//
// [ExportCSV] writes the whole dataset, independent of the current page,
// with every value double-quoted.
//
// # Error Handling
//
// Backend failures are returned to the caller and never mutate the table.
// [MapError] turns technical errors into a [UserMessage] with a support code:
//
//   - LOAD001, DEL001: load and delete failures
//   - DB001-DB004: database connectivity
//   - PLAT001-PLAT003: platform API responses
//   - TBL001-TBL003: table requests (page size, session, page action)
//   - REQ001-REQ002: cancelled and timed out requests
package core
