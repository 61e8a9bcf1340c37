// Package normalize maps per-vendor export tables onto the canonical catalog
// schema.
package normalize

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

var ErrMalformed = errors.New("malformed raw file")

// RenameTable maps known vendor column names to canonical fields.
// Columns not listed here are dropped.
var RenameTable = map[string]string{
	"Product Name":         catalog.ColProductName,
	"Final Price (AED)":    catalog.ColPrice,
	"Price (AED)":          catalog.ColPrice,
	"Base Price (AED)":     catalog.ColBasePrice,
	"Original Price (AED)": catalog.ColBasePrice,
	"Discount":             catalog.ColDiscount,
	"Stock Status":         catalog.ColStockStatus,
	"Available Qty":        catalog.ColAvailableQty,
	"Product URL":          catalog.ColProductURL,
	"Date":                 catalog.ColDate,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RawTable is a producer export as read from disk: a header and ragged rows.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// ReadRawTable parses a UTF-8 CSV export. An empty input is an empty table.
func ReadRawTable(r io.Reader) (RawTable, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return RawTable{}, fmt.Errorf("read error: %w", err)
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	if len(bytes.TrimSpace(b)) == 0 {
		return RawTable{}, nil
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return RawTable{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return RawTable{}, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return RawTable{Header: header, Rows: records[1:]}, nil
}

// Normalize converts a raw table into canonical records. Every record gets
// the same snapshot date and a vendor key derived from sourceFile.
func Normalize(table RawTable, sourceFile string, date time.Time) []catalog.Record {
	if len(table.Rows) == 0 {
		return nil
	}

	name := filepath.Base(sourceFile)
	vendorKey := catalog.VendorKey(name)
	day := catalog.Day(date)
	columns := canonicalColumns(table.Header)

	records := make([]catalog.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		get := func(field string) string {
			for _, i := range columns[field] {
				if i < len(row) && strings.TrimSpace(row[i]) != "" {
					return row[i]
				}
			}
			return ""
		}

		record := catalog.Record{
			ProductName:  get(catalog.ColProductName),
			Price:        catalog.ParsePrice(get(catalog.ColPrice)),
			BasePrice:    catalog.ParsePrice(get(catalog.ColBasePrice)),
			Discount:     get(catalog.ColDiscount),
			StockStatus:  get(catalog.ColStockStatus),
			AvailableQty: get(catalog.ColAvailableQty),
			ProductURL:   get(catalog.ColProductURL),
			Date:         day,
			SourceFile:   name,
			VendorKey:    vendorKey,
		}
		record.BasePrice = RepairBasePrice(record.Price, record.BasePrice)
		records = append(records, record)
	}
	return records
}

// RepairBasePrice collapses a missing or too-small base price onto price.
func RepairBasePrice(price, base catalog.Price) catalog.Price {
	if !base.Valid() {
		return price
	}
	if price.Valid() && base.Cmp(price) < 0 {
		return price
	}
	return base
}

// canonicalColumns returns, per canonical field, the indexes of the source
// columns renamed onto it in header order.
func canonicalColumns(header []string) map[string][]int {
	out := make(map[string][]int, len(catalog.Columns))
	for i, h := range header {
		if field, ok := RenameTable[h]; ok {
			out[field] = append(out[field], i)
		}
	}
	return out
}
