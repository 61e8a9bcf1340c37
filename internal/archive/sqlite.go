package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

const SQLiteTable = "normalized_combined"

var sqliteColumnTypes = map[string]string{
	catalog.ColPrice:     "REAL",
	catalog.ColBasePrice: "REAL",
}

// ExportSQLite mirrors records into a fresh SQLite database at path, with a
// derived category column. The file is built beside path and renamed in.
func ExportSQLite(path string, records []catalog.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir error: %w", err)
	}
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := writeSQLite(tmpPath, records); err != nil {
		return fmt.Errorf("write sqlite error: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename sqlite error: %w", err)
	}
	return nil
}

func writeSQLite(path string, records []catalog.Record) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	cols := append(append([]string(nil), catalog.Columns...), "category")
	var defs, quoted []string
	for _, c := range cols {
		t := sqliteColumnTypes[c]
		if t == "" {
			t = "TEXT"
		}
		defs = append(defs, fmt.Sprintf("%q %s", c, t))
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, SQLiteTable, strings.Join(defs, ","))); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, SQLiteTable, strings.Join(quoted, ","), ph))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.Exec(
			r.ProductName,
			sqlitePrice(r.Price),
			sqlitePrice(r.BasePrice),
			r.Discount,
			r.StockStatus,
			r.AvailableQty,
			r.ProductURL,
			catalog.FormatDate(r.Date),
			r.SourceFile,
			r.VendorKey,
			r.Category(),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, c := range []string{catalog.ColVendorKey, catalog.ColDate, catalog.ColProductName} {
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)`, SQLiteTable, c, SQLiteTable, c)
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

func sqlitePrice(p catalog.Price) any {
	f, ok := p.Float64()
	if !ok {
		return nil
	}
	return f
}
