// Package templates renders the sensor table UI as templ components.
//
// The page is driven by htmx: every control posts to /api and swaps the
// #sensor-table fragment with the response. Run `templ generate` after
// editing table.templ.
package templates

import (
	"net/url"

	"github.com/JonMunkholm/ParkingTable/internal/core"
)

// PageData is everything the full page needs.
type PageData struct {
	Title   string
	View    core.View
	Columns []core.Column
}

func cellText(rec core.Record, c core.Column) string {
	val, _ := rec.Get(c.Field)
	return core.FormatValue(val)
}

func deletePath(id string) string {
	return "/api/records/" + url.PathEscape(id)
}
