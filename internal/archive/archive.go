// Package archive persists normalized snapshots and maintains the combined
// archive that downstream readers load.
package archive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

const (
	DailyPrefix      = "normalized_daily_"
	CombinedFileName = "normalized_combined.csv"
)

// Store owns the archive directory (one file per snapshot date) and the
// combined table. Every write replaces its target file with a rename, so a
// concurrent reader sees either the old or the new file.
type Store struct {
	mu           sync.Mutex
	dir          string
	combinedPath string
}

// NewStore returns a store rooted at dir. An empty combinedPath puts the
// combined table inside dir.
func NewStore(dir, combinedPath string) *Store {
	if combinedPath == "" {
		combinedPath = filepath.Join(dir, CombinedFileName)
	}
	return &Store{dir: dir, combinedPath: combinedPath}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) CombinedPath() string {
	return s.combinedPath
}

// DailyPath is the snapshot file for date.
func (s *Store) DailyPath(date time.Time) string {
	return filepath.Join(s.dir, DailyPrefix+catalog.FormatDate(date)+".csv")
}

// WriteSnapshot writes the snapshot for date, replacing any earlier run for
// the same date.
func (s *Store) WriteSnapshot(date time.Time, records []catalog.Record) (string, error) {
	day := catalog.Day(date)
	for _, r := range records {
		if !r.Date.Equal(day) {
			return "", fmt.Errorf("record dated %s in snapshot %s", catalog.FormatDate(r.Date), catalog.FormatDate(day))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.DailyPath(day)
	if err := writeRecords(path, records); err != nil {
		return "", fmt.Errorf("write snapshot error: %w", err)
	}
	return path, nil
}

// Archive groups records by snapshot date and writes one daily file per
// date. It returns the dates written in ascending order.
func (s *Store) Archive(records []catalog.Record) ([]time.Time, error) {
	byDate := map[time.Time][]catalog.Record{}
	var dates []time.Time
	for _, r := range records {
		if _, ok := byDate[r.Date]; !ok {
			dates = append(dates, r.Date)
		}
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		if _, err := s.WriteSnapshot(d, byDate[d]); err != nil {
			return nil, err
		}
	}
	return dates, nil
}

// Append merges records into the combined table and returns how many rows
// were new. Exact duplicates of archived rows are dropped.
func (s *Store) Append(records []catalog.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readRecordsIfExists(s.combinedPath)
	if err != nil {
		return 0, fmt.Errorf("load combined error: %w", err)
	}
	merged := Combine(existing, records)
	if err := writeRecords(s.combinedPath, merged); err != nil {
		return 0, fmt.Errorf("write combined error: %w", err)
	}
	return len(merged) - len(existing), nil
}

// Replace swaps the combined table's rows for the given snapshot dates with
// records, so a re-ingested date carries only its latest run. Other dates are
// kept. It returns how many rows were not in the table before.
func (s *Store) Replace(dates []time.Time, records []catalog.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readRecordsIfExists(s.combinedPath)
	if err != nil {
		return 0, fmt.Errorf("load combined error: %w", err)
	}
	before := make(map[string]struct{}, len(existing))
	kept := make([]catalog.Record, 0, len(existing))
	for _, r := range existing {
		before[r.Key()] = struct{}{}
		if !containsDate(dates, r.Date) {
			kept = append(kept, r)
		}
	}
	merged := Combine(kept, records)
	if err := writeRecords(s.combinedPath, merged); err != nil {
		return 0, fmt.Errorf("write combined error: %w", err)
	}

	added := 0
	for _, r := range merged {
		if _, ok := before[r.Key()]; !ok {
			added++
		}
	}
	return added, nil
}

// Rebuild recombines every daily snapshot on disk into the combined table.
func (s *Store) Rebuild() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates, err := s.snapshotDates()
	if err != nil {
		return 0, err
	}
	var snapshots [][]catalog.Record
	for _, d := range dates {
		records, err := readRecords(s.DailyPath(d))
		if err != nil {
			return 0, fmt.Errorf("load snapshot %s error: %w", catalog.FormatDate(d), err)
		}
		snapshots = append(snapshots, records)
	}
	combined := Combine(snapshots...)
	if err := writeRecords(s.combinedPath, combined); err != nil {
		return 0, fmt.Errorf("write combined error: %w", err)
	}
	return len(combined), nil
}

// LoadCombined reads the combined archive. A missing file is an empty archive.
func (s *Store) LoadCombined() ([]catalog.Record, error) {
	records, err := readRecordsIfExists(s.combinedPath)
	if err != nil {
		return nil, fmt.Errorf("load combined error: %w", err)
	}
	return records, nil
}

// LoadSnapshot reads one daily file. A date that was never archived has no
// records.
func (s *Store) LoadSnapshot(date time.Time) ([]catalog.Record, error) {
	records, err := readRecordsIfExists(s.DailyPath(date))
	if err != nil {
		return nil, fmt.Errorf("load snapshot error: %w", err)
	}
	return records, nil
}

// Snapshots lists archived snapshot dates in ascending order.
func (s *Store) Snapshots() ([]time.Time, error) {
	return s.snapshotDates()
}

func (s *Store) snapshotDates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive dir error: %w", err)
	}
	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, DailyPrefix) || filepath.Ext(name) != ".csv" {
			continue
		}
		d, err := catalog.ParseDate(strings.TrimSuffix(strings.TrimPrefix(name, DailyPrefix), ".csv"))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// Combine unions snapshots in order and removes exact full-row duplicates,
// keeping the first occurrence.
func Combine(snapshots ...[]catalog.Record) []catalog.Record {
	seen := map[string]struct{}{}
	var out []catalog.Record
	for _, snapshot := range snapshots {
		for _, r := range snapshot {
			k := r.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func readRecordsIfExists(path string) ([]catalog.Record, error) {
	records, err := readRecords(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

func readRecords(path string) ([]catalog.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeRecords(bytes.NewReader(bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})))
}

func decodeRecords(r io.Reader) ([]catalog.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header error: %w", err)
	}
	for _, required := range []string{catalog.ColProductName, catalog.ColDate, catalog.ColVendorKey} {
		if !contains(header, required) {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var records []catalog.Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row error: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(fields) {
				row[h] = fields[i]
			}
		}
		record, err := catalog.ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func writeRecords(path string, records []catalog.Record) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(catalog.Columns); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write(r.Row()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// writeAtomic writes to a temp file next to path and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir error: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file error: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename error: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsDate(dates []time.Time, d time.Time) bool {
	for _, x := range dates {
		if x.Equal(d) {
			return true
		}
	}
	return false
}
