package core

// NormalizeRecords prepares raw backend records for display.
//
// Each record gets a BaseStationName field holding the name of its nested
// base station, or nil when the reference or its name is missing. The
// nested object itself is kept; the exporter skips it.
func NormalizeRecords(raw []Record) []Record {
	out := make([]Record, len(raw))
	for i, rec := range raw {
		out[i] = normalizeRecord(rec)
	}
	return out
}

func normalizeRecord(rec Record) Record {
	out := rec.Clone()
	related, _ := rec.Get(RelatedField)
	out.Set(DisplayField, relatedName(related))
	return out
}

// relatedName reads the Name of a related object, tolerating absent or
// malformed references.
func relatedName(related any) any {
	switch rel := related.(type) {
	case Record:
		name, _ := rel.Get(RelatedNameField)
		return name
	case map[string]any:
		return rel[RelatedNameField]
	default:
		return nil
	}
}
