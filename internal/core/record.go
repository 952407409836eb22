package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one sensor row: an ordered mapping of field name to value.
//
// Field order is the order in which keys were first set. The exporter derives
// its header from that order, so decoding keeps the order of the source
// payload instead of going through a Go map.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a record from alternating key/value pairs.
// Panics if a key is not a string or the pair count is odd.
func NewRecord(kv ...any) Record {
	if len(kv)%2 != 0 {
		panic("core.NewRecord: odd number of arguments")
	}
	var r Record
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("core.NewRecord: key %v is not a string", kv[i]))
		}
		r.Set(key, kv[i+1])
	}
	return r
}

// Set stores value under key. A new key is appended to the field order;
// an existing key keeps its position.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present, even with a nil value.
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// ID returns the record identifier, or "" when the record has none.
func (r Record) ID() string {
	v, ok := r.values[IDField]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// Clone returns a copy that shares no key slice or map with r.
func (r Record) Clone() Record {
	out := Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the payload's key order.
// Nested objects become Records; numbers are kept as json.Number so they
// render exactly as the backend sent them.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("invalid record: expected object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid record: unexpected key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeValue decodes one JSON value, turning objects into Records.
func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var nested Record
		if err := nested.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return nested, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
