package catalog

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// OutOfStock is the only stock status treated as unavailable.
const OutOfStock = "out of stock"

// Canonical CSV columns, in file order.
const (
	ColProductName  = "product_name"
	ColPrice        = "price"
	ColBasePrice    = "base_price"
	ColDiscount     = "discount"
	ColStockStatus  = "stock_status"
	ColAvailableQty = "available_qty"
	ColProductURL   = "product_url"
	ColDate         = "date"
	ColSourceFile   = "source_file"
	ColVendorKey    = "vendor_key"
)

var Columns = []string{
	ColProductName,
	ColPrice,
	ColBasePrice,
	ColDiscount,
	ColStockStatus,
	ColAvailableQty,
	ColProductURL,
	ColDate,
	ColSourceFile,
	ColVendorKey,
}

// Record is one normalized product listing from one snapshot.
type Record struct {
	ProductName  string
	Price        Price
	BasePrice    Price
	Discount     string
	StockStatus  string
	AvailableQty string
	ProductURL   string
	Date         time.Time
	SourceFile   string
	VendorKey    string
}

// Identity is what the diff engine tracks across snapshots.
type Identity struct {
	ProductName string
	VendorKey   string
}

func (r Record) Identity() Identity {
	return Identity{ProductName: r.ProductName, VendorKey: r.VendorKey}
}

func (r Record) OutOfStock() bool {
	return strings.EqualFold(r.StockStatus, OutOfStock)
}

func (r Record) Category() string {
	return Category(r.VendorKey)
}

// Row renders the record in Columns order.
func (r Record) Row() []string {
	return []string{
		r.ProductName,
		r.Price.String(),
		r.BasePrice.String(),
		r.Discount,
		r.StockStatus,
		r.AvailableQty,
		r.ProductURL,
		FormatDate(r.Date),
		r.SourceFile,
		r.VendorKey,
	}
}

// Key is the full-row identity used for exact duplicate removal.
func (r Record) Key() string {
	return strings.Join(r.Row(), "\x1f")
}

// ParseRow builds a Record from a canonical CSV row keyed by column name.
func ParseRow(row map[string]string) (Record, error) {
	date, err := ParseDate(row[ColDate])
	if err != nil {
		return Record{}, fmt.Errorf("parse date error: %w", err)
	}
	return Record{
		ProductName:  row[ColProductName],
		Price:        ParsePrice(row[ColPrice]),
		BasePrice:    ParsePrice(row[ColBasePrice]),
		Discount:     row[ColDiscount],
		StockStatus:  row[ColStockStatus],
		AvailableQty: row[ColAvailableQty],
		ProductURL:   row[ColProductURL],
		Date:         date,
		SourceFile:   row[ColSourceFile],
		VendorKey:    row[ColVendorKey],
	}, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
