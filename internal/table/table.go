package table

import "fmt"

// Package table defines the tabular data model shared by all repository
// backends: typed columns, fixed ordered schemas, and ordered record sets.
// It carries no persistence logic; adapters translate it to their engine.

// Type is a column type. The set is deliberately closed: every backend can
// represent these three without loss.
type Type int

const (
	Int64 Type = iota
	Float64
	String
)

// String returns the type name used in error messages.
func (t Type) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Column describes one named, typed column. Required columns reject nil
// values; optional columns accept them.
type Column struct {
	Name     string
	Type     Type
	Required bool
}

// Schema is an ordered list of columns, fixed at repository construction
// time. Name, order, and type together form the wire contract with callers.
type Schema struct {
	Columns []Column
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Equal reports whether two schemas match exactly: same column names, types,
// and nullability, in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}

// Row holds one record's values in schema column order. Optional columns may
// hold nil; otherwise values are int64, float64, or string per column type.
type Row []any

// RecordSet is an ordered sequence of rows conforming to a single schema.
// Duplicate rows are permitted and insertion order is preserved. It is not
// safe for concurrent use.
type RecordSet struct {
	schema Schema
	rows   []Row
}

// NewRecordSet returns an empty record set for the given schema.
func NewRecordSet(schema Schema) *RecordSet {
	return &RecordSet{schema: schema}
}

// Schema returns the record set's schema.
func (rs *RecordSet) Schema() Schema { return rs.schema }

// Len returns the number of rows.
func (rs *RecordSet) Len() int { return len(rs.rows) }

// Rows returns the underlying rows in insertion order. The slice is shared,
// not copied; callers must not mutate it.
func (rs *RecordSet) Rows() []Row { return rs.rows }

// Append validates values against the schema and appends them as a new row.
// It accepts int for int64 columns as a convenience. Values are rejected on
// arity mismatch, a nil for a required column, or a wrong Go type.
func (rs *RecordSet) Append(values ...any) error {
	if len(values) != len(rs.schema.Columns) {
		return fmt.Errorf("expected %d values, got %d", len(rs.schema.Columns), len(values))
	}
	row := make(Row, len(values))
	for i, col := range rs.schema.Columns {
		v, err := col.coerce(values[i])
		if err != nil {
			return err
		}
		row[i] = v
	}
	rs.rows = append(rs.rows, row)
	return nil
}

// coerce validates a single value against the column definition and
// normalizes it to the canonical Go type.
func (c Column) coerce(v any) (any, error) {
	if v == nil {
		if c.Required {
			return nil, fmt.Errorf("column %q is required", c.Name)
		}
		return nil, nil
	}
	switch c.Type {
	case Int64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case Float64:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("column %q expects %s, got %T", c.Name, c.Type, v)
}
