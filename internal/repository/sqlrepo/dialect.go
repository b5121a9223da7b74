package sqlrepo

import (
	"strconv"
	"strings"

	"biotab/internal/table"
)

// Dialect selects the SQL flavor for DDL type names and bind placeholders.
// The adapter is otherwise dialect-agnostic: both engines speak standard
// multi-row INSERT and DROP/CREATE TABLE.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// String returns the dialect name used in errors and logs.
func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// columnType maps a schema column type to the dialect's DDL type name.
func (d Dialect) columnType(t table.Type) string {
	switch t {
	case table.Int64:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case table.Float64:
		if d == SQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// placeholder returns the bind placeholder for a 1-based argument position.
func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// maxParams returns the engine's bind-parameter limit per statement:
// SQLITE_MAX_VARIABLE_NUMBER (32766 since SQLite 3.32) and the 16-bit
// parameter count of the Postgres extended protocol.
func (d Dialect) maxParams() int {
	if d == SQLite {
		return 32766
	}
	return 65535
}

// quoteIdent quotes a table or column identifier. Both engines accept
// double-quoted identifiers with embedded quotes doubled.
func (d Dialect) quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
