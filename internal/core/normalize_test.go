package core

import "testing"

func TestNormalizeRecords(t *testing.T) {
	tests := []struct {
		name     string
		in       Record
		wantName any
	}{
		{
			name:     "related record",
			in:       NewRecord(IDField, "1", RelatedField, NewRecord("Id", "b1", "Name", "North Gate")),
			wantName: "North Gate",
		},
		{
			name:     "related map",
			in:       NewRecord(IDField, "2", RelatedField, map[string]any{"Name": "South"}),
			wantName: "South",
		},
		{
			name:     "missing reference",
			in:       NewRecord(IDField, "3"),
			wantName: nil,
		},
		{
			name:     "null reference",
			in:       NewRecord(IDField, "4", RelatedField, nil),
			wantName: nil,
		},
		{
			name:     "reference without name",
			in:       NewRecord(IDField, "5", RelatedField, NewRecord("Id", "b5")),
			wantName: nil,
		},
		{
			name:     "malformed reference",
			in:       NewRecord(IDField, "6", RelatedField, "not-an-object"),
			wantName: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NormalizeRecords([]Record{tt.in})
			got, ok := out[0].Get(DisplayField)
			if !ok {
				t.Fatalf("%s not set", DisplayField)
			}
			if got != tt.wantName {
				t.Errorf("%s = %v, want %v", DisplayField, got, tt.wantName)
			}
		})
	}
}

func TestNormalizeRecords_DoesNotMutateInput(t *testing.T) {
	in := []Record{NewRecord(IDField, "1", RelatedField, NewRecord("Name", "N"))}

	NormalizeRecords(in)

	if in[0].Has(DisplayField) {
		t.Error("input record was modified")
	}
}

func TestNormalizeRecords_KeepsFieldOrder(t *testing.T) {
	in := []Record{NewRecord(IDField, "1", "Name__c", "A", RelatedField, nil)}

	out := NormalizeRecords(in)

	keys := out[0].Keys()
	if keys[len(keys)-1] != DisplayField {
		t.Errorf("keys = %v, want %s last", keys, DisplayField)
	}
}
