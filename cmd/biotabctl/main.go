package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"biotab/internal/config"
	"biotab/internal/database"
	"biotab/internal/export"
	"biotab/internal/repository"
	"biotab/internal/repository/sqlrepo"
	"biotab/internal/repository/warehouse"
	"biotab/internal/storage"
	"biotab/internal/table"
)

const usage = `usage: biotabctl -backend <sqlite|postgres|bigquery> -schema <gene-disease|publication|score> -table <name> <command>

Commands:
  load [file.csv]   append CSV rows (stdin when no file) to the table
  dump              write the table (or -filter result) as CSV to stdout
  wipe              drop and recreate the table, discarding all rows
  export            upload a CSV snapshot of the table to the object store

Backend connection settings come from the environment (.env auto-loaded).
`

func main() {
	backend := flag.String("backend", "sqlite", "storage backend: sqlite, postgres, or bigquery")
	schemaName := flag.String("schema", "", "record schema: gene-disease, publication, or score")
	tableName := flag.String("table", "", "table name (dataset.table for bigquery)")
	filter := flag.String("filter", "", "raw backend-native query (default: all rows)")
	chunkSize := flag.Int("chunk-size", repository.DefaultChunkSize, "rows per query chunk")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	schema, ok := table.SchemaByName(*schemaName)
	if !ok {
		log.Fatalf("unknown schema %q", *schemaName)
	}
	if *tableName == "" {
		log.Fatal("-table is required")
	}

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	ctx := context.Background()

	repo, err := newRepository(ctx, cfg, *backend, *tableName, schema)
	if err != nil {
		log.Fatalf("failed to construct repository: %v", err)
	}
	defer repo.Close()

	q := repository.Query{Filter: *filter, ChunkSize: *chunkSize}

	switch cmd := flag.Arg(0); cmd {
	case "load":
		if err := load(ctx, repo, flag.Arg(1)); err != nil {
			log.Fatalf("load failed: %v", err)
		}
	case "dump":
		if err := dump(ctx, repo, q); err != nil {
			log.Fatalf("dump failed: %v", err)
		}
	case "wipe":
		if err := repo.DeleteAll(ctx); err != nil {
			log.Fatalf("wipe failed: %v", err)
		}
	case "export":
		objStore, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to initialize object storage: %v", err)
		}
		info, err := export.NewService(objStore, "snapshots").Snapshot(ctx, repo, q)
		if err != nil {
			log.Fatalf("export failed: %v", err)
		}
		log.Printf("exported %d bytes to %s", info.Size, info.Key)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

// newRepository selects and constructs the backend adapter.
func newRepository(ctx context.Context, cfg *config.AppConfig, backend, tableName string, schema table.Schema) (repository.RecordRepository, error) {
	switch backend {
	case "sqlite":
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return sqlrepo.New(ctx, db, sqlrepo.SQLite, tableName, schema)
	case "postgres":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		return sqlrepo.New(ctx, db, sqlrepo.Postgres, tableName, schema)
	case "bigquery":
		return warehouse.New(ctx, warehouse.Config{
			ProjectID:       cfg.BigQuery.ProjectID,
			CredentialsFile: cfg.BigQuery.CredentialsFile,
			ReadOnly:        cfg.BigQuery.ReadOnly,
		}, tableName, schema)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// load appends CSV rows from the named file (or stdin) in chunk-sized
// batches, so large files never reside in memory at once.
func load(ctx context.Context, repo repository.RecordRepository, file string) error {
	in := os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	r := csv.NewReader(in)
	r.FieldsPerRecord = len(repo.Schema().Columns)
	batch := table.NewRecordSet(repo.Schema())
	total := 0
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		values, err := table.ParseRow(repo.Schema(), fields)
		if err != nil {
			return err
		}
		if err := batch.Append(values...); err != nil {
			return err
		}
		if batch.Len() >= repository.DefaultChunkSize {
			if err := repo.Save(ctx, batch); err != nil {
				return err
			}
			total += batch.Len()
			batch = table.NewRecordSet(repo.Schema())
		}
	}
	if batch.Len() > 0 {
		if err := repo.Save(ctx, batch); err != nil {
			return err
		}
		total += batch.Len()
	}
	log.Printf("loaded %d rows into %s", total, repo.TableName())
	return nil
}

// dump streams query chunks to stdout as CSV with a header row.
func dump(ctx context.Context, repo repository.RecordRepository, q repository.Query) error {
	chunks, err := repo.Query(ctx, q)
	if err != nil {
		return err
	}
	defer chunks.Close()

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(repo.Schema().Names()); err != nil {
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
