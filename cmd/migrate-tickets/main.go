// Command migrate-tickets copies stored ticket files from a local directory
// into the storage backend selected by the service configuration. It reads
// listing file paths from the database and never modifies rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/resaletix/resaletix-backend/internal/filestore"
	"github.com/resaletix/resaletix-backend/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type storedFile struct {
	Key      string
	MimeType string
	Size     int64
}

type summary struct {
	migrated atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

func main() {
	dryRun := flag.Bool("dry-run", false, "List files that would be copied without uploading")
	concurrency := flag.Int("concurrency", 4, "Number of parallel uploads")
	sourcePath := flag.String("source-path", "./uploads", "Local directory holding the ticket files")
	flag.Parse()

	logger.InitLogger()
	log := logger.GetLogger().Named("migrate-tickets")
	defer func() { _ = logger.Close() }()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Backend == config.StorageLocal {
		log.Fatal("Destination backend is local; set STORAGE_BACKEND to r2 or supabase")
	}

	poolConfig, err := config.PoolConfig(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to build database config: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	files, err := listStoredFiles(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to list listing files: %v", err)
	}
	log.Infow("Found listing files", "count", len(files))
	if len(files) == 0 {
		return
	}

	source, err := filestore.NewLocalFileStorage(*sourcePath)
	if err != nil {
		log.Fatalf("Failed to open source directory: %v", err)
	}

	if *dryRun {
		for i, f := range files {
			state := "present"
			if !exists(ctx, source, f.Key) {
				state = "missing"
			}
			fmt.Printf("  [%d/%d] %s (%s)\n", i+1, len(files), f.Key, state)
		}
		return
	}

	dest, err := filestore.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize destination storage: %v", err)
	}

	var sum summary
	copyAll(ctx, log, source, dest, files, *concurrency, &sum)

	log.Infow("Migration finished",
		"total", len(files),
		"migrated", sum.migrated.Load(),
		"skipped", sum.skipped.Load(),
		"failed", sum.failed.Load())
	if sum.failed.Load() > 0 {
		os.Exit(1)
	}
}

func listStoredFiles(ctx context.Context, pool *pgxpool.Pool) ([]storedFile, error) {
	rows, err := pool.Query(ctx, `SELECT file_path, mime_type, file_size FROM listings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedFile
	for rows.Next() {
		var f storedFile
		if err := rows.Scan(&f.Key, &f.MimeType, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// copyAll never aborts early: each failure is counted and the rest continue.
func copyAll(ctx context.Context, log *zap.SugaredLogger, source, dest filestore.FileStorage, files []storedFile, concurrency int, sum *summary) {
	if concurrency < 1 {
		concurrency = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, f := range files {
		g.Go(func() error {
			if exists(gCtx, dest, f.Key) {
				sum.skipped.Add(1)
				return nil
			}
			if err := copyFile(gCtx, source, dest, f); err != nil {
				log.Errorw("Failed to copy file", "index", i+1, "key", f.Key, "error", err)
				sum.failed.Add(1)
				return nil
			}
			sum.migrated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
}

func copyFile(ctx context.Context, source, dest filestore.FileStorage, f storedFile) error {
	r, err := source.Open(ctx, f.Key)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer r.Close()

	if err := dest.Save(ctx, f.Key, r, f.Size, f.MimeType); err != nil {
		return fmt.Errorf("save destination: %w", err)
	}
	if !exists(ctx, dest, f.Key) {
		return fmt.Errorf("verification failed")
	}
	return nil
}

func exists(ctx context.Context, s filestore.FileStorage, key string) bool {
	r, err := s.Open(ctx, key)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 1))
	_ = r.Close()
	return true
}
