package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"biotab/internal/repository"
	"biotab/internal/storage"
	"biotab/internal/table"
)

var ErrRepoNil = errors.New("repository is nil")

// Service defines the use case of snapshotting repository contents into the
// object store as CSV, so downstream consumers can pick up classifier
// output or source tables without a database connection.
type Service interface {
	// Snapshot runs q against repo, renders the result as CSV (header row =
	// schema column names), and uploads it under a uuid-suffixed key.
	Snapshot(ctx context.Context, repo repository.RecordRepository, q repository.Query) (storage.ObjectInfo, error)
}

// service is a concrete implementation of Service.
type service struct {
	store  storage.Storage
	prefix string
}

// NewService constructs a snapshot export service writing under the given
// key prefix.
func NewService(store storage.Storage, prefix string) Service {
	return &service{store: store, prefix: prefix}
}

func (s *service) Snapshot(ctx context.Context, repo repository.RecordRepository, q repository.Query) (storage.ObjectInfo, error) {
	if repo == nil {
		return storage.ObjectInfo{}, ErrRepoNil
	}

	chunks, err := repo.Query(ctx, q)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("query %s: %w", repo.TableName(), err)
	}
	defer chunks.Close()

	// Stream chunk by chunk through a pipe so the snapshot never holds the
	// whole table in memory; Size -1 lets the store chunk the upload.
	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := writeCSV(pw, repo.Schema().Names(), chunks)
		pw.CloseWithError(err)
		errc <- err
	}()

	key := path.Join(s.prefix, repo.TableName()+"-"+uuid.New().String()+".csv")
	info, putErr := s.store.Put(ctx, key, pr, storage.PutObjectOptions{
		Size:        -1,
		ContentType: "text/csv",
	})
	// Unblock the writer if the upload stopped reading early, then collect
	// its result. An aborted writer only echoes the upload failure back.
	pr.CloseWithError(putErr)
	werr := <-errc
	if werr != nil && werr != putErr && !errors.Is(werr, io.ErrClosedPipe) {
		return storage.ObjectInfo{}, fmt.Errorf("read chunks: %w", werr)
	}
	if putErr != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload snapshot: %w", putErr)
	}
	return info, nil
}

// writeCSV renders the header row and every chunk's rows to w.
func writeCSV(dst io.Writer, header []string, chunks repository.Chunks) error {
	w := csv.NewWriter(dst)
	if err := w.Write(header); err != nil {
		return err
	}
	for chunks.Next() {
		for _, row := range chunks.Chunk().Rows() {
			if err := w.Write(table.FormatRow(row)); err != nil {
				return err
			}
		}
	}
	if err := chunks.Err(); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
