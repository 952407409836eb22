package core

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Field names of the sensor payload.
const (
	IDField          = "Id"              // unique identifier, present on every record
	RelatedField     = "Base_Station__r" // nested base station object
	RelatedNameField = "Name"            // name field of the nested base station
	DisplayField     = "BaseStationName" // flattened display value derived by the loader
)

// DefaultPageSize is used until the backend suggests one.
const DefaultPageSize = 10

// DefaultQuietPeriod is how long search input must be idle before a reload.
const DefaultQuietPeriod = 500 * time.Millisecond

// DefaultLoadTimeout bounds a reload triggered by the debounce timer.
const DefaultLoadTimeout = 30 * time.Second

// ExportFileName is the name of the downloaded CSV file.
const ExportFileName = "Account Data.csv"

// PageSizeOptions are the page sizes offered by the page-size selector.
var PageSizeOptions = []int{10, 25, 50, 100, 200}

// IsPageSizeOption reports whether n is one of PageSizeOptions.
func IsPageSizeOption(n int) bool {
	return slices.Contains(PageSizeOptions, n)
}

var (
	// ErrStaleResponse is returned by Load when a newer load was dispatched
	// before this one completed. The result was discarded.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrInvalidPageSize is returned for a non-positive page size.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrRecordNotFound is returned by backends when the record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMissingRecordID is returned when a delete is requested without an id.
	ErrMissingRecordID = errors.New("missing record id")

	// ErrInvalidRecordID is returned by backends for identifiers that can
	// never name a record.
	ErrInvalidRecordID = errors.New("invalid sensor id")
)

// FetchResult is the backend answer to a search: every matching sensor and
// the page size the backend suggests for displaying them.
type FetchResult struct {
	Sensors         []Record `json:"sensors"`
	DefaultPageSize int      `json:"defaultPageSize"`
}

// Backend is the data service the table reads from and deletes through.
// Satisfied by *store.Store and *platform.Client.
type Backend interface {
	// FetchRecords returns all records matching searchKey. No server-side
	// pagination: the full match set is returned.
	FetchRecords(ctx context.Context, searchKey string) (FetchResult, error)

	// DeleteRecord deletes one record by identifier.
	DeleteRecord(ctx context.Context, id string) error
}

// IDCanonicalizer is implemented by backends that accept more than one
// spelling of the same identifier (UUIDs in either case, for example).
// CanonicalID returns the spelling used in fetched records.
type IDCanonicalizer interface {
	CanonicalID(id string) string
}

// canonicalID maps id to the form b uses in its records.
func canonicalID(b Backend, id string) string {
	if c, ok := b.(IDCanonicalizer); ok {
		return c.CanonicalID(id)
	}
	return id
}

// ColumnType is the display type of a column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnButton ColumnType = "button"
)

// Column describes one table column for renderers.
type Column struct {
	Label  string     `json:"label"`
	Field  string     `json:"field,omitempty"`  // record field shown in the cell
	Type   ColumnType `json:"type"`             // text or button
	Action string     `json:"action,omitempty"` // row action name for button columns
}

// Columns is the sensor table layout.
var Columns = []Column{
	{Label: "Name", Field: "Name__c", Type: ColumnText},
	{Label: "Base Station", Field: DisplayField, Type: ColumnText},
	{Label: "Sensor model", Field: "Sensor_model__c", Type: ColumnText},
	{Label: "Status", Field: "Status__c", Type: ColumnText},
	{Label: "Delete", Type: ColumnButton, Action: "delete"},
}

// View is a snapshot of a table's visible state, safe to render without
// holding the table lock.
type View struct {
	Records       []Record     `json:"records"`
	Page          int          `json:"page"`
	PageSize      int          `json:"pageSize"`
	TotalCount    int          `json:"totalCount"`
	TotalPages    int          `json:"totalPages"`
	StartRecord   int          `json:"startRecord"`
	EndRecord     int          `json:"endRecord"`
	SearchKey     string       `json:"searchKey"`
	SearchPending bool         `json:"searchPending"`
	Loaded        bool         `json:"loaded"`
	Error         *UserMessage `json:"error,omitempty"`
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.Page > 1 }

// HasNext reports whether a next page exists.
func (v View) HasNext() bool { return v.Page < v.TotalPages }
