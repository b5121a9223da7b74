package sqlrepo

import (
	"context"
	"database/sql"
	"strings"

	"biotab/internal/errs"
	"biotab/internal/repository"
	"biotab/internal/table"
)

// Repository is the relational implementation of repository.RecordRepository.
// It uses database/sql with parameterized statements and contains no
// business logic. Construction creates the backing table if absent; the
// repository does not own the *sql.DB and never closes it on failure paths,
// only via Close.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	name    string
	schema  table.Schema
}

var _ repository.RecordRepository = (*Repository)(nil)

// New binds a repository to one table of db, issuing CREATE TABLE IF NOT
// EXISTS from the schema as a construction side effect.
func New(ctx context.Context, db *sql.DB, dialect Dialect, tableName string, schema table.Schema) (*Repository, error) {
	r := &Repository{db: db, dialect: dialect, name: tableName, schema: schema}
	if err := r.createTable(ctx); err != nil {
		return nil, errs.Storage("create", tableName, err)
	}
	return r, nil
}

// TableName returns the bound table name.
func (r *Repository) TableName() string { return r.name }

// Schema returns the fixed schema supplied at construction.
func (r *Repository) Schema() table.Schema { return r.schema }

func (r *Repository) createTable(ctx context.Context) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(r.dialect.quoteIdent(r.name))
	b.WriteString(" (")
	for i, col := range r.schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.dialect.quoteIdent(col.Name))
		b.WriteString(" ")
		b.WriteString(r.dialect.columnType(col.Type))
		if col.Required {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	_, err := r.db.ExecContext(ctx, b.String())
	return err
}

// quotedNames returns the schema's column identifiers quoted for SQL.
func (r *Repository) quotedNames() []string {
	names := r.schema.Names()
	for i, name := range names {
		names[i] = r.dialect.quoteIdent(name)
	}
	return names
}

// Save appends all rows of rs in batched multi-row INSERTs, splitting the
// record set so no statement exceeds the engine's bind-parameter limit.
// No rows are written when the record set's schema does not match the
// repository's; across batches, partial writes on failure remain
// backend-defined.
func (r *Repository) Save(ctx context.Context, rs *table.RecordSet) error {
	if !rs.Schema().Equal(r.schema) {
		return errs.SchemaMismatch(r.name, "record set columns do not match repository schema")
	}
	if rs.Len() == 0 {
		return nil
	}

	rows := rs.Rows()
	maxRows := r.dialect.maxParams() / len(r.schema.Columns)
	for start := 0; start < len(rows); start += maxRows {
		end := min(start+maxRows, len(rows))
		if err := r.insert(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) insert(ctx context.Context, rows []table.Row) error {
	cols := r.quotedNames()
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(r.dialect.quoteIdent(r.name))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.dialect.placeholder(len(args) + 1))
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return errs.Storage("save", r.name, err)
	}
	return nil
}

// DeleteAll drops and recreates the table, discarding all rows. A later
// Save against the same schema still succeeds.
func (r *Repository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+r.dialect.quoteIdent(r.name)); err != nil {
		return errs.Storage("delete_all", r.name, err)
	}
	if err := r.createTable(ctx); err != nil {
		return errs.Storage("delete_all", r.name, err)
	}
	return nil
}

// Query selects rows and streams them back in fixed-size chunks over the
// driver's cursor. A non-empty filter is passed through to the engine
// unmodified; an empty filter scans the whole table.
//
// The full scan carries no ORDER BY: rows come back in the engine's natural
// order, which is insertion (rowid) order on SQLite but only heap order on
// Postgres, where updates or vacuum can reorder. Callers needing a hard
// ordering on Postgres should pass a filter with an explicit ORDER BY.
func (r *Repository) Query(ctx context.Context, q repository.Query) (repository.Chunks, error) {
	stmt := q.Filter
	if stmt == "" {
		stmt = "SELECT " + strings.Join(r.quotedNames(), ", ") + " FROM " + r.dialect.quoteIdent(r.name)
	}
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, errs.Storage("query", r.name, err)
	}
	return &chunks{rows: rows, schema: r.schema, name: r.name, size: q.EffectiveChunkSize()}, nil
}

// Close is a no-op: the *sql.DB is shared and owned by the caller.
func (r *Repository) Close() error { return nil }

// chunks implements repository.Chunks over an open *sql.Rows cursor.
type chunks struct {
	rows   *sql.Rows
	schema table.Schema
	name   string
	size   int
	cur    *table.RecordSet
	err    error
	done   bool
}

func (c *chunks) Next() bool {
	if c.err != nil || c.done {
		return false
	}
	rs := table.NewRecordSet(c.schema)
	dest := scanDest(c.schema)
	for rs.Len() < c.size {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				c.err = errs.Storage("query", c.name, err)
				return false
			}
			break
		}
		if err := c.rows.Scan(dest...); err != nil {
			c.err = errs.Storage("query", c.name, err)
			return false
		}
		if err := rs.Append(scanValues(c.schema, dest)...); err != nil {
			c.err = errs.Storage("query", c.name, err)
			return false
		}
	}
	if rs.Len() == 0 {
		return false
	}
	c.cur = rs
	return true
}

func (c *chunks) Chunk() *table.RecordSet { return c.cur }

func (c *chunks) Err() error { return c.err }

func (c *chunks) Close() error {
	// sql.Rows.Close is idempotent, so abandoning mid-iteration is safe.
	if err := c.rows.Close(); err != nil {
		return errs.Storage("query", c.name, err)
	}
	return nil
}

// scanDest builds one nullable scan destination per schema column.
func scanDest(schema table.Schema) []any {
	dest := make([]any, len(schema.Columns))
	for i, col := range schema.Columns {
		switch col.Type {
		case table.Int64:
			dest[i] = new(sql.NullInt64)
		case table.Float64:
			dest[i] = new(sql.NullFloat64)
		default:
			dest[i] = new(sql.NullString)
		}
	}
	return dest
}

// scanValues converts scanned destinations back into typed values, mapping
// SQL NULL to nil.
func scanValues(schema table.Schema, dest []any) []any {
	values := make([]any, len(dest))
	for i, col := range schema.Columns {
		switch col.Type {
		case table.Int64:
			if v := dest[i].(*sql.NullInt64); v.Valid {
				values[i] = v.Int64
			}
		case table.Float64:
			if v := dest[i].(*sql.NullFloat64); v.Valid {
				values[i] = v.Float64
			}
		default:
			if v := dest[i].(*sql.NullString); v.Valid {
				values[i] = v.String
			}
		}
	}
	return values
}
