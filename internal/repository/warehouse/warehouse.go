package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"biotab/internal/errs"
	"biotab/internal/repository"
	"biotab/internal/table"
)

const backendName = "bigquery"

// Config holds the construction parameters for a warehouse repository.
// CredentialsFile points at a service-account JSON key; when empty the
// client falls back to application default credentials. ReadOnly disables
// Save and DeleteAll so a production dataset cannot be written or wiped by
// tooling that only needs to read.
type Config struct {
	ProjectID       string
	CredentialsFile string
	ReadOnly        bool
}

// Repository is the Google BigQuery implementation of
// repository.RecordRepository. The table name is dataset-qualified
// ("dataset.table"). Construction only binds the project and table context;
// the table itself is provisioned lazily on first write, matching the
// warehouse's auto-provision semantics.
type Repository struct {
	client   *bigquery.Client
	dataset  string
	name     string
	schema   table.Schema
	bqSchema bigquery.Schema
	readOnly bool
}

var _ repository.RecordRepository = (*Repository)(nil)

// New authenticates against BigQuery and binds a repository to the
// dataset-qualified table.
func New(ctx context.Context, cfg Config, qualified string, schema table.Schema) (*Repository, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("bigquery project id is required")
	}
	dataset, name, ok := strings.Cut(qualified, ".")
	if !ok || dataset == "" || name == "" {
		return nil, fmt.Errorf("table name %q must be dataset-qualified (dataset.table)", qualified)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}

	return &Repository{
		client:   client,
		dataset:  dataset,
		name:     name,
		schema:   schema,
		bqSchema: toBigQuerySchema(schema),
		readOnly: cfg.ReadOnly,
	}, nil
}

// TableName returns the dataset-qualified table name.
func (r *Repository) TableName() string { return r.dataset + "." + r.name }

// Schema returns the fixed schema supplied at construction.
func (r *Repository) Schema() table.Schema { return r.schema }

func (r *Repository) tableRef() *bigquery.Table {
	return r.client.Dataset(r.dataset).Table(r.name)
}

// Save appends all rows of rs via the streaming insert API, creating the
// table on first write if the warehouse has not provisioned it yet.
func (r *Repository) Save(ctx context.Context, rs *table.RecordSet) error {
	if r.readOnly {
		return errs.Unsupported(backendName, "save")
	}
	if !rs.Schema().Equal(r.schema) {
		return errs.SchemaMismatch(r.TableName(), "record set columns do not match repository schema")
	}
	if rs.Len() == 0 {
		return nil
	}
	if err := r.ensureTable(ctx); err != nil {
		return errs.Storage("save", r.TableName(), err)
	}

	savers := make([]*bigquery.ValuesSaver, 0, rs.Len())
	for _, row := range rs.Rows() {
		values := make([]bigquery.Value, len(row))
		for i, v := range row {
			values[i] = v
		}
		savers = append(savers, &bigquery.ValuesSaver{Schema: r.bqSchema, Row: values})
	}
	if err := r.tableRef().Inserter().Put(ctx, savers); err != nil {
		return errs.Storage("save", r.TableName(), err)
	}
	return nil
}

// DeleteAll deletes the table and recreates it empty with the repository's
// schema.
func (r *Repository) DeleteAll(ctx context.Context) error {
	if r.readOnly {
		return errs.Unsupported(backendName, "delete_all")
	}
	if err := r.tableRef().Delete(ctx); err != nil && !isNotFound(err) {
		return errs.Storage("delete_all", r.TableName(), err)
	}
	if err := r.tableRef().Create(ctx, &bigquery.TableMetadata{Schema: r.bqSchema}); err != nil {
		return errs.Storage("delete_all", r.TableName(), err)
	}
	return nil
}

// Query reads rows through the paginated result API and regroups them into
// fixed-size chunks, matching the relational adapter's contract. A
// non-empty filter runs as a standard SQL query; an empty filter reads the
// table directly.
func (r *Repository) Query(ctx context.Context, q repository.Query) (repository.Chunks, error) {
	var it *bigquery.RowIterator
	if q.Filter == "" {
		it = r.tableRef().Read(ctx)
	} else {
		var err error
		it, err = r.client.Query(q.Filter).Read(ctx)
		if err != nil {
			return nil, errs.Storage("query", r.TableName(), err)
		}
	}
	return &chunks{it: it, schema: r.schema, name: r.TableName(), size: q.EffectiveChunkSize()}, nil
}

// Close releases the underlying client connection.
func (r *Repository) Close() error {
	return r.client.Close()
}

// ensureTable provisions the table on first write. BigQuery's streaming
// insert path rejects writes to a missing table rather than creating it.
func (r *Repository) ensureTable(ctx context.Context) error {
	_, err := r.tableRef().Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	if err := r.tableRef().Create(ctx, &bigquery.TableMetadata{Schema: r.bqSchema}); err != nil && !isConflict(err) {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 409
}

// toBigQuerySchema maps the repository schema onto BigQuery field types.
func toBigQuerySchema(schema table.Schema) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		field := &bigquery.FieldSchema{Name: col.Name, Required: col.Required}
		switch col.Type {
		case table.Int64:
			field.Type = bigquery.IntegerFieldType
		case table.Float64:
			field.Type = bigquery.FloatFieldType
		default:
			field.Type = bigquery.StringFieldType
		}
		out = append(out, field)
	}
	return out
}

// chunks implements repository.Chunks over a BigQuery row iterator.
type chunks struct {
	it     *bigquery.RowIterator
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
	for rs.Len() < c.size {
		var row []bigquery.Value
		err := c.it.Next(&row)
		if err == iterator.Done {
			c.done = true
			break
		}
		if err != nil {
			c.err = errs.Storage("query", c.name, err)
			return false
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := rs.Append(values...); err != nil {
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

// Close is a no-op: the row iterator pages lazily and holds no cursor
// beyond the client connection, which Repository.Close releases.
func (c *chunks) Close() error { return nil }
