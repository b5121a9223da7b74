// Package errs defines the error types surfaced by repositories.
//
// Every backend failure is normalized to one of three kinds so callers can
// branch with errors.As without knowing which storage engine is behind a
// repository: StorageError for failed backend operations, SchemaMismatchError
// for record sets that do not match the repository schema, and
// UnsupportedOperationError for capabilities a backend refuses to provide.
package errs

import "fmt"

// StorageError wraps a backend failure from a repository operation. The
// originating error is preserved as the cause for errors.Is/As.
type StorageError struct {
	Op    string // repository operation: save, delete_all, query, create
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s on %q: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err in a StorageError. It returns nil if err is nil so call
// sites can wrap unconditionally.
func Storage(op, tableName string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Table: tableName, Err: err}
}

// SchemaMismatchError reports a record set whose shape does not match the
// repository's schema. It is raised before any row is written.
type SchemaMismatchError struct {
	Table  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on %q: %s", e.Table, e.Reason)
}

// SchemaMismatch builds a SchemaMismatchError with a formatted reason.
func SchemaMismatch(tableName, format string, args ...any) error {
	return &SchemaMismatchError{Table: tableName, Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError reports a capability the backend does not
// provide. Backends must raise it instead of silently no-opping.
type UnsupportedOperationError struct {
	Backend string
	Op      string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("backend %s does not support %s", e.Backend, e.Op)
}

// Unsupported builds an UnsupportedOperationError.
func Unsupported(backend, op string) error {
	return &UnsupportedOperationError{Backend: backend, Op: op}
}
