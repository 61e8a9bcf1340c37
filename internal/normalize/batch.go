package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

// FileError reports a raw file that was skipped.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("normalize %s error: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// NormalizeFile reads and normalizes one export. On error no records are
// returned.
func NormalizeFile(path string, date time.Time) ([]catalog.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	table, err := ReadRawTable(f)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return Normalize(table, path, date), nil
}

type Options struct {
	// DateFromFileName uses a file's own _YYYY-MM-DD suffix as its snapshot
	// date when it has one, for replaying historical exports.
	DateFromFileName bool
	Logger           *slog.Logger
}

type BatchResult struct {
	Records []catalog.Record
	Files   []string
	Skipped []*FileError
}

// Batch normalizes every path. Files that fail are skipped and reported;
// they never stop the remaining files from being processed.
func Batch(paths []string, date time.Time, opts Options) BatchResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var result BatchResult
	for _, path := range paths {
		fileDate := date
		if opts.DateFromFileName {
			if d, ok := FileDate(path); ok {
				fileDate = d
			}
		}

		records, err := NormalizeFile(path, fileDate)
		if err != nil {
			var fileErr *FileError
			if !errors.As(err, &fileErr) {
				fileErr = &FileError{Path: path, Err: err}
			}
			logger.Warn("skipping raw file", "file", filepath.Base(path), "err", fileErr.Err)
			result.Skipped = append(result.Skipped, fileErr)
			continue
		}
		logger.Info("normalized raw file", "file", filepath.Base(path), "records", len(records), "date", catalog.FormatDate(fileDate))
		result.Files = append(result.Files, path)
		result.Records = append(result.Records, records...)
	}
	return result
}

// FileDate parses the _YYYY-MM-DD suffix of an export file name.
func FileDate(path string) (time.Time, bool) {
	_, suffix, ok := SplitFileName(path)
	if !ok {
		return time.Time{}, false
	}
	d, err := catalog.ParseDate(suffix)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// SplitFileName returns the vendor key and date text of an export file name.
func SplitFileName(path string) (vendorKey string, date string, ok bool) {
	return catalog.SplitDateSuffix(catalog.Stem(path))
}

// ListExports returns the raw *.csv exports in dir, sorted by name. Files
// written by the archive (normalized_*) are not raw exports and are left out.
func ListExports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read export dir error: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.HasPrefix(name, "normalized_") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
