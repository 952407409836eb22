package core

// export.go serializes the full dataset to CSV.
//
// Format:
//   - header: distinct field names across all records, first-seen order,
//     without the nested base station object (already flattened by the loader)
//   - rows: every value wrapped in double quotes, missing fields as ""
//   - comma delimited, "\n" after every line including the header
//
// encoding/csv only quotes fields that need it, so rows are written by hand
// to keep every value quoted. Embedded quotes are doubled (RFC 4180).

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportCSV renders records as CSV. Returns false for an empty dataset.
func ExportCSV(records []Record) ([]byte, bool) {
	if len(records) == 0 {
		return nil, false
	}

	header := ExportHeader(records)

	var buf bytes.Buffer
	buf.WriteString(strings.Join(header, ","))
	buf.WriteByte('\n')

	for _, rec := range records {
		for i, field := range header {
			if i > 0 {
				buf.WriteByte(',')
			}
			v, _ := rec.Get(field)
			writeQuoted(&buf, FormatValue(v))
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes(), true
}

// ExportHeader returns the distinct field names of records in first-seen
// order, skipping the nested related object.
func ExportHeader(records []Record) []string {
	seen := make(map[string]bool)
	var header []string
	for _, rec := range records {
		for _, key := range rec.keys {
			if key == RelatedField || seen[key] {
				continue
			}
			seen[key] = true
			header = append(header, key)
		}
	}
	return header
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(s, `"`, `""`))
	buf.WriteByte('"')
}

// FormatValue renders a field value for display and export.
// nil renders as an empty string.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case Record, map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
