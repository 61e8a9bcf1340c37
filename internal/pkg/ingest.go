package pkg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/ex-n-soldiers/catalog-tracker/internal/archive"
	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/normalize"
)

// IngestOptions configures one normalize-and-archive run. DB, S3 and
// SQLitePath are optional mirrors.
type IngestOptions struct {
	ExportDir        string
	Date             time.Time
	DateFromFileName bool
	SQLitePath       string
	DB               *gorm.DB
	S3               *S3Mirror
	Metrics          *Metrics
	Logger           *slog.Logger
}

type IngestResult struct {
	Manifest      archive.Manifest
	DailyFiles    []string
	CombinedAdded int
	Mirrored      int64
	Uploaded      []string
}

// Ingest normalizes every raw export in the export dir, writes the daily
// snapshots, merges them into the combined archive and publishes the run
// manifest. Malformed files are skipped; archive write failures end the run.
func Ingest(ctx context.Context, store *archive.Store, opts IngestOptions) (IngestResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	paths, err := normalize.ListExports(opts.ExportDir)
	if err != nil {
		return IngestResult{}, err
	}
	batch := normalize.Batch(paths, opts.Date, normalize.Options{
		DateFromFileName: opts.DateFromFileName,
		Logger:           logger,
	})
	metrics.FilesNormalized.Add(float64(len(batch.Files)))
	metrics.FilesSkipped.Add(float64(len(batch.Skipped)))

	var result IngestResult
	dates, err := store.Archive(batch.Records)
	if err != nil {
		return IngestResult{}, err
	}
	for _, d := range dates {
		result.DailyFiles = append(result.DailyFiles, store.DailyPath(d))
	}
	metrics.RecordsArchived.Add(float64(len(batch.Records)))

	added, err := store.Replace(dates, batch.Records)
	if err != nil {
		return IngestResult{}, err
	}
	result.CombinedAdded = added
	metrics.RecordsDeduplicated.Add(float64(len(batch.Records) - added))
	logger.Info("combined archive updated", "records", len(batch.Records), "added", added, "file", store.CombinedPath())

	if opts.SQLitePath != "" {
		combined, err := store.LoadCombined()
		if err != nil {
			return IngestResult{}, err
		}
		if err := archive.ExportSQLite(opts.SQLitePath, combined); err != nil {
			return IngestResult{}, err
		}
		logger.Info("sqlite export written", "file", opts.SQLitePath, "records", len(combined))
	}

	if opts.DB != nil {
		n, err := MirrorRecords(opts.DB.WithContext(ctx), batch.Records)
		if err != nil {
			return IngestResult{}, err
		}
		result.Mirrored = n
		metrics.RecordsMirrored.Add(float64(n))
		logger.Info("history store updated", "inserted", n)
	}

	manifest := archive.Manifest{Records: len(batch.Records), CombinedAdded: added}
	for _, d := range dates {
		manifest.SnapshotDates = append(manifest.SnapshotDates, catalog.FormatDate(d))
	}
	for _, f := range batch.Files {
		manifest.Files = append(manifest.Files, filepath.Base(f))
	}
	for _, s := range batch.Skipped {
		manifest.Skipped = append(manifest.Skipped, filepath.Base(s.Path))
	}
	result.Manifest, err = store.PublishManifest(manifest)
	if err != nil {
		return IngestResult{}, err
	}

	if opts.S3 != nil {
		uploads := append(append([]string(nil), result.DailyFiles...), store.CombinedPath(), filepath.Join(store.Dir(), archive.ManifestFileName))
		result.Uploaded, err = opts.S3.Upload(ctx, uploads...)
		if err != nil {
			return IngestResult{}, fmt.Errorf("mirror to s3 error: %w", err)
		}
	}

	metrics.MarkRun(time.Now())
	return result, nil
}
