package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/ParkingTable/internal/core"
)

func render(t *testing.T, v core.View) string {
	t.Helper()
	var buf bytes.Buffer
	if err := TablePartial(v, core.Columns).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestTablePartial_EscapesValues(t *testing.T) {
	v := core.View{
		Records: []core.Record{
			core.NewRecord("Id", "a/b", "Name__c", `<script>alert("x")</script>`),
		},
		Page: 1, PageSize: 10, TotalCount: 1, TotalPages: 1, StartRecord: 1, EndRecord: 1,
		Loaded: true,
	}

	out := render(t, v)
	if strings.Contains(out, "<script>alert") {
		t.Error("record value was not escaped")
	}
	if !strings.Contains(out, `hx-delete="/api/records/a%2Fb"`) {
		t.Error("delete target not path-escaped")
	}
}

func TestTablePartial_PagerBoundaries(t *testing.T) {
	v := core.View{
		Records:  []core.Record{core.NewRecord("Id", "1")},
		Page:     1,
		PageSize: 25, TotalCount: 30, TotalPages: 2, StartRecord: 1, EndRecord: 25,
		Loaded: true,
	}

	out := render(t, v)
	for _, want := range []string{
		"Showing 1 to 25 of 30 records",
		"Page 1 of 2",
		`<option value="25" selected>25</option>`,
		`hx-post="/api/page/first" hx-target="#sensor-table" hx-swap="outerHTML" aria-label="first page" disabled>`,
		`hx-post="/api/page/prev" hx-target="#sensor-table" hx-swap="outerHTML" aria-label="prev page" disabled>`,
		`aria-label="next page">`,
		`aria-label="last page">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTablePartial_EmptyStates(t *testing.T) {
	loading := render(t, core.View{Page: 1, PageSize: 10})
	if !strings.Contains(loading, "Loading") || !strings.Contains(loading, "Page 1 of 1") {
		t.Errorf("unloaded table: %s", loading)
	}

	empty := render(t, core.View{Page: 1, PageSize: 10, Loaded: true, StartRecord: 1})
	if !strings.Contains(empty, "No sensors found") {
		t.Error("missing empty message")
	}
	if !strings.Contains(empty, "Showing 1 to 0 of 0 records") {
		t.Error("empty pager text changed")
	}
}

func TestTablePartial_PendingSearchPolls(t *testing.T) {
	out := render(t, core.View{Page: 1, PageSize: 10, SearchPending: true})
	if !strings.Contains(out, `hx-get="/table" hx-trigger="load delay:600ms"`) {
		t.Error("pending search does not poll")
	}

	out = render(t, core.View{Page: 1, PageSize: 10})
	if strings.Contains(out, `hx-get="/table"`) {
		t.Error("idle table polls")
	}
}

func TestTablePartial_ErrorBanner(t *testing.T) {
	out := render(t, core.View{
		Page: 1, PageSize: 10,
		Error: &core.UserMessage{Message: "Sensors could not be loaded", Action: "Retry", Code: "LOAD001"},
	})
	if !strings.Contains(out, `role="alert"`) || !strings.Contains(out, "<code>LOAD001</code>") {
		t.Errorf("banner missing: %s", out)
	}
}

func TestTablePage_IncludesHTMX(t *testing.T) {
	var buf bytes.Buffer
	err := TablePage(PageData{
		Title:   "Sensors & Bays",
		View:    core.View{Page: 1, PageSize: 10, SearchKey: `a"b`},
		Columns: core.Columns,
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`<script src="https://unpkg.com/htmx.org@1.9.12">`,
		"<title>Sensors &amp; Bays</title>",
		`value="a&#34;b"`,
		`hx-post="/api/search"`,
		`href="/api/export"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
}
