package cmd

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/diff"
)

// recordView is the JSON shape of a record on the command line.
type recordView struct {
	ProductName  string `json:"productName"`
	VendorKey    string `json:"vendorKey"`
	Category     string `json:"category"`
	Price        string `json:"price,omitempty"`
	BasePrice    string `json:"basePrice,omitempty"`
	Discount     string `json:"discount,omitempty"`
	StockStatus  string `json:"stockStatus,omitempty"`
	AvailableQty string `json:"availableQty,omitempty"`
	ProductURL   string `json:"productUrl,omitempty"`
	Date         string `json:"date"`
	SourceFile   string `json:"sourceFile"`
}

func viewOf(r catalog.Record) recordView {
	return recordView{
		ProductName:  r.ProductName,
		VendorKey:    r.VendorKey,
		Category:     r.Category(),
		Price:        r.Price.String(),
		BasePrice:    r.BasePrice.String(),
		Discount:     r.Discount,
		StockStatus:  r.StockStatus,
		AvailableQty: r.AvailableQty,
		ProductURL:   r.ProductURL,
		Date:         catalog.FormatDate(r.Date),
		SourceFile:   r.SourceFile,
	}
}

func viewsOf(records []catalog.Record) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, viewOf(r))
	}
	return out
}

type transitionView struct {
	recordView
	WentOutOfStockOn string `json:"wentOutOfStockOn"`
}

type priceChangeView struct {
	ProductName string `json:"productName"`
	VendorKey   string `json:"vendorKey"`
	FromPrice   string `json:"fromPrice"`
	ToPrice     string `json:"toPrice"`
	Change      string `json:"change"`
}

type diffView struct {
	From            string               `json:"from"`
	To              string               `json:"to"`
	Summary         diff.Summary         `json:"summary"`
	NewProducts     []recordView         `json:"newProducts"`
	Delisted        []recordView         `json:"delisted"`
	Restocked       []recordView         `json:"restocked"`
	WentOutOfStock  []transitionView     `json:"wentOutOfStock"`
	TopPriceChanges []priceChangeView    `json:"topPriceChanges"`
	ByCategory      []diff.CategoryCount `json:"outOfStockByCategory"`
}

func diffViewOf(r diff.Result) diffView {
	v := diffView{
		From:            catalog.FormatDate(r.From),
		To:              catalog.FormatDate(r.To),
		Summary:         r.Summary(),
		NewProducts:     viewsOf(r.NewProducts),
		Delisted:        viewsOf(r.Delisted),
		Restocked:       viewsOf(r.Restocked),
		WentOutOfStock:  make([]transitionView, 0, len(r.WentOutOfStock)),
		TopPriceChanges: make([]priceChangeView, 0, len(r.TopPriceChanges)),
		ByCategory:      r.OutOfStockByCategory(),
	}
	for _, t := range r.WentOutOfStock {
		v.WentOutOfStock = append(v.WentOutOfStock, transitionView{
			recordView:       viewOf(t.Record),
			WentOutOfStockOn: catalog.FormatDate(t.WentOutOfStockOn),
		})
	}
	for _, c := range r.TopPriceChanges {
		v.TopPriceChanges = append(v.TopPriceChanges, priceChangeView{
			ProductName: c.ProductName,
			VendorKey:   c.VendorKey,
			FromPrice:   c.FromPrice.String(),
			ToPrice:     c.ToPrice.String(),
			Change:      c.Change.String(),
		})
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderRecords(w io.Writer, title string, records []catalog.Record) {
	t := newTable(w, title, table.Row{"Date", "Vendor", "Category", "Product", "Price", "Stock"})
	for _, r := range records {
		t.AppendRow(table.Row{catalog.FormatDate(r.Date), r.VendorKey, r.Category(), r.ProductName, r.Price.String(), r.StockStatus})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(records)})
	t.Render()
}

func renderDiff(w io.Writer, r diff.Result) {
	s := r.Summary()
	t := newTable(w, "Summary "+catalog.FormatDate(r.From)+" → "+catalog.FormatDate(r.To),
		table.Row{"New", "Delisted", "Restocked", "Went out of stock"})
	t.AppendRow(table.Row{s.NewProducts, s.Delisted, s.Restocked, s.WentOutOfStock})
	t.Render()

	renderRecords(w, "New products", r.NewProducts)
	renderRecords(w, "Delisted", r.Delisted)
	renderRecords(w, "Restocked", r.Restocked)

	t = newTable(w, "Went out of stock", table.Row{"Date", "Vendor", "Category", "Product", "Last price"})
	for _, tr := range r.WentOutOfStock {
		t.AppendRow(table.Row{catalog.FormatDate(tr.WentOutOfStockOn), tr.VendorKey, tr.Category(), tr.ProductName, tr.Price.String()})
	}
	t.Render()

	t = newTable(w, "Out of stock by category", table.Row{"Category", "Count"})
	for _, c := range r.OutOfStockByCategory() {
		t.AppendRow(table.Row{c.Category, c.Count})
	}
	t.Render()

	t = newTable(w, "Top price changes", table.Row{"Vendor", "Product", "From", "To", "Change"})
	for _, c := range r.TopPriceChanges {
		t.AppendRow(table.Row{c.VendorKey, c.ProductName, c.FromPrice.String(), c.ToPrice.String(), c.Change.String()})
	}
	t.Render()
}
