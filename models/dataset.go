package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one row of an ingestion batch: field name to value. Fields keep
// the order they were first set in, so columns come out in the order the
// client sent them.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{values: make(map[string]any)}
}

// RecordOf builds a record from alternating key, value pairs.
func RecordOf(kv ...any) Record {
	r := NewRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return r
}

// Set adds or replaces a field. A replaced field keeps its position.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value of key and whether it is present.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns field names in insertion order.
func (r Record) Keys() []string {
	return r.keys
}

func (r Record) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the fields in insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. Numbers are decoded as
// json.Number so integers are not turned into floats. null yields an empty
// record.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = NewRecord()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected a JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected a field name, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		r.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// IngestionBatch is the body of POST /analyze. It is never persisted as such;
// it is turned into a Frame and appended to the warehouse table.
type IngestionBatch struct {
	Data []Record `json:"data"`
}

// ColumnKind is the inferred type of a frame column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInteger
	KindFloat
	KindBool
	KindJSON
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	default:
		return "string"
	}
}

// Column describes one frame column.
type Column struct {
	Name string
	Kind ColumnKind
}

// Frame is the tabular form of a batch. Rows are aligned with Columns; a nil
// cell is a missing value.
type Frame struct {
	Columns []Column
	Rows    [][]any
}

// Empty mirrors a dataframe with no rows or no columns.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Rows) == 0 || len(f.Columns) == 0
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// TableRef addresses a warehouse table.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// String returns the fully qualified project.dataset.table id.
func (t TableRef) String() string {
	return t.Project + "." + t.Dataset + "." + t.Table
}

// QueryResult holds the rows returned by a SQL workspace query.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// IngestionResult is the success body of POST /analyze.
type IngestionResult struct {
	Status string `json:"status"`
	Rows   int    `json:"rows"`
}
