package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"biotab/internal/errs"
	"biotab/internal/repository"
	"biotab/internal/table"
)

func newMockRepo(t *testing.T, dialect Dialect, name string, schema table.Schema) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "` + name + `"`).WillReturnResult(sqlmock.NewResult(0, 0))
	repo, err := New(context.Background(), db, dialect, name, schema)
	require.NoError(t, err)
	return repo, mock
}

func TestNew(t *testing.T) {
	t.Run("creates table from schema", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "scores" \("digest" TEXT NOT NULL, "pub_score" DOUBLE PRECISION NOT NULL, "ct_score" DOUBLE PRECISION NOT NULL\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo, err := New(context.Background(), db, Postgres, "scores", table.Score)
		require.NoError(t, err)
		assert.Equal(t, "scores", repo.TableName())
		assert.True(t, repo.Schema().Equal(table.Score))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create failure surfaces as StorageError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cause := errors.New("permission denied")
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "scores"`).WillReturnError(cause)

		_, err = New(context.Background(), db, Postgres, "scores", table.Score)
		var storageErr *errs.StorageError
		assert.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, cause)
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("batched multi-row insert", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "gene_disease", table.GeneDisease)

		rs := table.NewRecordSet(table.GeneDisease)
		require.NoError(t, rs.Append("d1", "BRCA1", int64(672), nil, "D001943", "100"))
		require.NoError(t, rs.Append("d2", nil, int64(673), "Breast cancer", "D001944", "200"))

		mock.ExpectExec(`INSERT INTO "gene_disease" \("digest", "genesymbol", "geneid", "diseasename", "diseaseid", "pmids"\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\), \(\$7, \$8, \$9, \$10, \$11, \$12\)`).
			WithArgs("d1", "BRCA1", int64(672), nil, "D001943", "100",
				"d2", nil, int64(673), "Breast cancer", "D001944", "200").
			WillReturnResult(sqlmock.NewResult(0, 2))

		assert.NoError(t, repo.Save(ctx, rs))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty record set is a no-op", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		assert.NoError(t, repo.Save(ctx, table.NewRecordSet(table.Score)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schema mismatch rejected before any write", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		rs := table.NewRecordSet(table.GeneDisease)
		require.NoError(t, rs.Append("d1", nil, int64(672), nil, "D001943", "100"))

		err := repo.Save(ctx, rs)
		var mismatch *errs.SchemaMismatchError
		assert.ErrorAs(t, err, &mismatch)
		// No INSERT was expected and none was issued.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend failure wrapped as StorageError", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		rs := table.NewRecordSet(table.Score)
		require.NoError(t, rs.Append("d1", 0.5, 0.9))

		cause := errors.New("connection reset")
		mock.ExpectExec(`INSERT INTO "scores"`).WillReturnError(cause)

		err := repo.Save(ctx, rs)
		var storageErr *errs.StorageError
		assert.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "save", storageErr.Op)
		assert.ErrorIs(t, err, cause)
	})
}

func TestDeleteAll(t *testing.T) {
	repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

	mock.ExpectExec(`DROP TABLE IF EXISTS "scores"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "scores"`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.DeleteAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("full scan chunked with order preserved", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		rows := sqlmock.NewRows([]string{"digest", "pub_score", "ct_score"})
		for _, d := range []string{"d1", "d2", "d3", "d4", "d5"} {
			rows.AddRow(d, 0.5, 0.9)
		}
		mock.ExpectQuery(`SELECT "digest", "pub_score", "ct_score" FROM "scores"`).WillReturnRows(rows)

		chunks, err := repo.Query(ctx, repository.Query{ChunkSize: 2})
		require.NoError(t, err)
		defer chunks.Close()

		var sizes []int
		var digests []string
		for chunks.Next() {
			rs := chunks.Chunk()
			sizes = append(sizes, rs.Len())
			for _, row := range rs.Rows() {
				digests = append(digests, row[0].(string))
			}
		}
		require.NoError(t, chunks.Err())
		assert.Equal(t, []int{2, 2, 1}, sizes)
		assert.Equal(t, []string{"d1", "d2", "d3", "d4", "d5"}, digests)
	})

	t.Run("empty table yields zero chunks", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		mock.ExpectQuery(`SELECT "digest", "pub_score", "ct_score" FROM "scores"`).
			WillReturnRows(sqlmock.NewRows([]string{"digest", "pub_score", "ct_score"}))

		chunks, err := repo.Query(ctx, repository.Query{})
		require.NoError(t, err)
		defer chunks.Close()

		assert.False(t, chunks.Next())
		assert.NoError(t, chunks.Err())
	})

	t.Run("filter passed through to the backend", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		filter := "SELECT digest, pub_score, ct_score FROM scores WHERE pub_score > 0.8"
		mock.ExpectQuery("WHERE pub_score > 0.8").
			WillReturnRows(sqlmock.NewRows([]string{"digest", "pub_score", "ct_score"}).AddRow("d9", 0.9, 0.1))

		chunks, err := repo.Query(ctx, repository.Query{Filter: filter})
		require.NoError(t, err)
		rs, err := repository.ReadAll(table.Score, chunks)
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid filter surfaces as StorageError", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

		cause := errors.New("syntax error")
		mock.ExpectQuery("nonsense").WillReturnError(cause)

		_, err := repo.Query(ctx, repository.Query{Filter: "nonsense"})
		var storageErr *errs.StorageError
		assert.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("NULL columns scan to nil", func(t *testing.T) {
		repo, mock := newMockRepo(t, Postgres, "gene_disease", table.GeneDisease)

		rows := sqlmock.NewRows([]string{"digest", "genesymbol", "geneid", "diseasename", "diseaseid", "pmids"}).
			AddRow("d1", nil, int64(672), nil, "D001943", "100")
		mock.ExpectQuery(`SELECT (.+) FROM "gene_disease"`).WillReturnRows(rows)

		chunks, err := repo.Query(ctx, repository.Query{})
		require.NoError(t, err)
		rs, err := repository.ReadAll(table.GeneDisease, chunks)
		require.NoError(t, err)
		require.Equal(t, 1, rs.Len())
		assert.Nil(t, rs.Rows()[0][1])
		assert.Nil(t, rs.Rows()[0][3])
	})
}

// TestSQLiteRoundTrip runs the whole contract against a real in-process
// SQLite database: save two associations, read them back in insertion
// order, wipe, verify empty, and confirm the recreated table still accepts
// the schema.
func TestSQLiteRoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// The in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	repo, err := New(ctx, db, SQLite, "gene_disease", table.GeneDisease)
	require.NoError(t, err)

	rs := table.NewRecordSet(table.GeneDisease)
	require.NoError(t, rs.Append("d1", nil, int64(1), nil, "D1", "100"))
	require.NoError(t, rs.Append("d2", nil, int64(2), nil, "D2", "200"))
	require.NoError(t, repo.Save(ctx, rs))

	chunks, err := repo.Query(ctx, repository.Query{})
	require.NoError(t, err)
	got, err := repository.ReadAll(table.GeneDisease, chunks)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "d1", got.Rows()[0][0])
	assert.Equal(t, int64(1), got.Rows()[0][2])
	assert.Equal(t, "d2", got.Rows()[1][0])

	// Saving again appends rather than overwriting.
	require.NoError(t, repo.Save(ctx, rs))
	chunks, err = repo.Query(ctx, repository.Query{ChunkSize: 3})
	require.NoError(t, err)
	got, err = repository.ReadAll(table.GeneDisease, chunks)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())

	require.NoError(t, repo.DeleteAll(ctx))

	chunks, err = repo.Query(ctx, repository.Query{})
	require.NoError(t, err)
	got, err = repository.ReadAll(table.GeneDisease, chunks)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())

	// Table was recreated, not destroyed.
	require.NoError(t, repo.Save(ctx, rs))
}

// TestSQLiteLargeSave saves a record set big enough that a single INSERT
// would exceed SQLite's bind-variable limit (10000 rows x 6 columns), and
// verifies every row survives the batched writes.
func TestSQLiteLargeSave(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	repo, err := New(ctx, db, SQLite, "gene_disease", table.GeneDisease)
	require.NoError(t, err)

	const n = 10000
	rs := table.NewRecordSet(table.GeneDisease)
	for i := 0; i < n; i++ {
		require.NoError(t, rs.Append(fmt.Sprintf("d%d", i), nil, int64(i), nil, "D1", "100"))
	}
	require.NoError(t, repo.Save(ctx, rs))

	chunks, err := repo.Query(ctx, repository.Query{ChunkSize: 4096})
	require.NoError(t, err)
	got, err := repository.ReadAll(table.GeneDisease, chunks)
	require.NoError(t, err)
	require.Equal(t, n, got.Len())
	assert.Equal(t, "d0", got.Rows()[0][0])
	assert.Equal(t, fmt.Sprintf("d%d", n-1), got.Rows()[n-1][0])
}

// TestSQLiteQuotedTableName exercises a table name that is only valid when
// the adapter quotes identifiers.
func TestSQLiteQuotedTableName(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	repo, err := New(ctx, db, SQLite, "gene disease order", table.GeneDisease)
	require.NoError(t, err)

	rs := table.NewRecordSet(table.GeneDisease)
	require.NoError(t, rs.Append("d1", nil, int64(1), nil, "D1", "100"))
	require.NoError(t, repo.Save(ctx, rs))

	chunks, err := repo.Query(ctx, repository.Query{})
	require.NoError(t, err)
	got, err := repository.ReadAll(table.GeneDisease, chunks)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	require.NoError(t, repo.DeleteAll(ctx))
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "BIGINT", Postgres.columnType(table.Int64))
	assert.Equal(t, "DOUBLE PRECISION", Postgres.columnType(table.Float64))
	assert.Equal(t, "TEXT", Postgres.columnType(table.String))
	assert.Equal(t, "INTEGER", SQLite.columnType(table.Int64))
	assert.Equal(t, "REAL", SQLite.columnType(table.Float64))

	assert.Equal(t, "$3", Postgres.placeholder(3))
	assert.Equal(t, "?", SQLite.placeholder(3))

	assert.Equal(t, 65535, Postgres.maxParams())
	assert.Equal(t, 32766, SQLite.maxParams())

	assert.Equal(t, `"scores"`, Postgres.quoteIdent("scores"))
	assert.Equal(t, `"a""b"`, SQLite.quoteIdent(`a"b`))
}

// TestSaveBatchSplit verifies Save issues one INSERT per parameter-budget
// batch and keeps row order across statements.
func TestSaveBatchSplit(t *testing.T) {
	repo, mock := newMockRepo(t, Postgres, "scores", table.Score)

	maxRows := Postgres.maxParams() / len(table.Score.Columns)
	rs := table.NewRecordSet(table.Score)
	for i := 0; i < maxRows+1; i++ {
		require.NoError(t, rs.Append(fmt.Sprintf("d%d", i), 0.5, 0.9))
	}

	mock.ExpectExec(`INSERT INTO "scores"`).WillReturnResult(sqlmock.NewResult(0, int64(maxRows)))
	mock.ExpectExec(`INSERT INTO "scores" \("digest", "pub_score", "ct_score"\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(fmt.Sprintf("d%d", maxRows), 0.5, 0.9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), rs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
