package table

import (
	"fmt"
	"strconv"
)

// ParseRow converts one CSV record (all strings) into typed values in schema
// order. An empty field maps to nil for optional columns and to the zero
// string for required string columns.
func ParseRow(schema Schema, fields []string) ([]any, error) {
	if len(fields) != len(schema.Columns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(schema.Columns), len(fields))
	}
	values := make([]any, len(fields))
	for i, col := range schema.Columns {
		field := fields[i]
		if field == "" && !col.Required {
			values[i] = nil
			continue
		}
		switch col.Type {
		case Int64:
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			values[i] = n
		case Float64:
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			values[i] = f
		default:
			values[i] = field
		}
	}
	return values, nil
}

// FormatRow renders a typed row back into CSV fields. Nil values become
// empty fields.
func FormatRow(row Row) []string {
	fields := make([]string, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case nil:
			fields[i] = ""
		case int64:
			fields[i] = strconv.FormatInt(x, 10)
		case float64:
			fields[i] = strconv.FormatFloat(x, 'g', -1, 64)
		case string:
			fields[i] = x
		default:
			fields[i] = fmt.Sprint(x)
		}
	}
	return fields
}
