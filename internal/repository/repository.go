package repository

// Package repository defines the backend-independent data access contract.
// Implementations live in subpackages (sqlrepo, warehouse) inside this
// directory; callers program against RecordRepository and never see which
// engine is behind it.

import (
	"context"

	"biotab/internal/table"
)

// DefaultChunkSize is the number of rows per query chunk when the caller
// does not specify one.
const DefaultChunkSize = 10000

// Query selects rows from a repository.
//
// Filter is a raw backend-native query string passed through unmodified; an
// empty filter selects all rows of the repository's table. ChunkSize bounds
// the rows per produced chunk; zero or negative means DefaultChunkSize.
type Query struct {
	Filter    string
	ChunkSize int
}

// EffectiveChunkSize returns ChunkSize, or DefaultChunkSize when unset.
func (q Query) EffectiveChunkSize() int {
	if q.ChunkSize > 0 {
		return q.ChunkSize
	}
	return DefaultChunkSize
}

// Chunks is a lazy, finite, forward-only sequence of record-set chunks
// backed by a live backend cursor. Each chunk holds at most the query's
// chunk size in rows; the last may be shorter. Consuming the sequence
// drives further backend fetches, so arbitrarily large tables never reside
// in memory at once.
//
// The sequence is not restartable. Callers must fully consume it or call
// Close to release the backend cursor. Usage follows the sql.Rows idiom:
//
//	chunks, err := repo.Query(ctx, repository.Query{ChunkSize: 500})
//	if err != nil { ... }
//	defer chunks.Close()
//	for chunks.Next() {
//		rs := chunks.Chunk()
//		...
//	}
//	if err := chunks.Err(); err != nil { ... }
type Chunks interface {
	// Next advances to the next chunk, fetching from the backend as needed.
	// It returns false when the sequence is exhausted or a fetch failed.
	Next() bool

	// Chunk returns the current chunk. Valid only after Next returned true.
	Chunk() *table.RecordSet

	// Err returns the error that terminated iteration, if any.
	Err() error

	// Close releases the backend cursor. Safe to call multiple times.
	Close() error
}

// RecordRepository is the uniform data-access contract over one backend
// table. A repository owns exactly one schema and one backend connection;
// both are fixed at construction time.
//
// All operations are synchronous and blocking. The contract adds no
// locking: concurrent calls on one instance are only as safe as the
// underlying backend connection makes them.
type RecordRepository interface {
	// TableName returns the backend table the repository is bound to.
	TableName() string

	// Schema returns the fixed schema supplied at construction.
	Schema() table.Schema

	// Save appends all rows of rs to the backend table. It never overwrites
	// or deduplicates existing rows. A record set whose schema does not
	// match the repository's fails with SchemaMismatchError before any row
	// is written; backend failures surface as StorageError. Partial writes
	// on failure are backend-defined.
	Save(ctx context.Context, rs *table.RecordSet) error

	// DeleteAll discards every row by dropping and recreating the backend
	// table with the repository's schema.
	DeleteAll(ctx context.Context) error

	// Query returns the rows selected by q as a chunk sequence. Re-querying
	// requires a fresh Query call and a fresh backend round trip.
	Query(ctx context.Context, q Query) (Chunks, error)

	// Close releases the repository's backend connection, if it owns one.
	Close() error
}

// ReadAll drains chunks into a single record set with the given schema,
// closing the sequence when done. Intended for small results and tests;
// production consumers should iterate chunk by chunk.
func ReadAll(schema table.Schema, chunks Chunks) (*table.RecordSet, error) {
	defer chunks.Close()
	out := table.NewRecordSet(schema)
	for chunks.Next() {
		for _, row := range chunks.Chunk().Rows() {
			if err := out.Append(row...); err != nil {
				return nil, err
			}
		}
	}
	if err := chunks.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
