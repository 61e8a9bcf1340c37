// Package diff compares archived catalog snapshots: products that appeared,
// disappeared, came back in stock or ran out, and the largest price moves.
package diff

import (
	"sort"
	"strings"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

// TopPriceChangeLimit is how many price movers a Result carries.
const TopPriceChangeLimit = 3

// Scope selects which result sets Filters apply to.
type Scope int

const (
	// ScopeOutOfStock filters only WentOutOfStock. This matches the
	// dashboard the archive was built for; the other sets stay unfiltered.
	ScopeOutOfStock Scope = iota
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOutOfStock:
		return "out-of-stock"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Filters narrows results by category and vendor key. An empty list means
// no restriction on that dimension.
type Filters struct {
	Categories []string
	Vendors    []string
	Scope      Scope
}

func (f Filters) match(r catalog.Record) bool {
	if len(f.Categories) > 0 && !containsFold(f.Categories, r.Category()) {
		return false
	}
	if len(f.Vendors) > 0 && !contains(f.Vendors, r.VendorKey) {
		return false
	}
	return true
}

func (f Filters) apply(records []catalog.Record) []catalog.Record {
	if len(f.Categories) == 0 && len(f.Vendors) == 0 {
		return records
	}
	var out []catalog.Record
	for _, r := range records {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// StockTransition is a product seen out of stock on WentOutOfStockOn after being
// available on the previous snapshot date.
type StockTransition struct {
	catalog.Record
	WentOutOfStockOn time.Time
}

// PriceChange is one product's price at both ends of the compared range.
type PriceChange struct {
	catalog.Identity
	FromPrice catalog.Price
	ToPrice   catalog.Price
	Change    catalog.Price
}

type Result struct {
	From            time.Time
	To              time.Time
	NewProducts     []catalog.Record
	Delisted        []catalog.Record
	Restocked       []catalog.Record
	WentOutOfStock  []StockTransition
	TopPriceChanges []PriceChange
}

// Summary counts each result set.
type Summary struct {
	NewProducts     int `json:"newProducts"`
	Delisted        int `json:"delisted"`
	Restocked       int `json:"restocked"`
	WentOutOfStock  int `json:"wentOutOfStock"`
	TopPriceChanges int `json:"topPriceChanges"`
}

func (r Result) Summary() Summary {
	return Summary{
		NewProducts:     len(r.NewProducts),
		Delisted:        len(r.Delisted),
		Restocked:       len(r.Restocked),
		WentOutOfStock:  len(r.WentOutOfStock),
		TopPriceChanges: len(r.TopPriceChanges),
	}
}

// CategoryCount is the number of products of one category that ran out.
type CategoryCount struct {
	Category string
	Count    int
}

// OutOfStockByCategory counts WentOutOfStock per category, largest first.
// Ties are ordered by category name.
func (r Result) OutOfStockByCategory() []CategoryCount {
	counts := map[string]int{}
	for _, t := range r.WentOutOfStock {
		counts[t.Category()]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Compute diffs the snapshot at from against the snapshot at to. A date
// without data compares as an empty snapshot.
func Compute(records []catalog.Record, from, to time.Time, f Filters) Result {
	from, to = catalog.Day(from), catalog.Day(to)
	start := snapshotAt(records, from)
	end := snapshotAt(records, to)

	startIDs := identities(start, nil)
	endIDs := identities(end, nil)
	startOutOfStock := identities(start, catalog.Record.OutOfStock)

	result := Result{From: from, To: to}
	for _, r := range end {
		if _, ok := startIDs[r.Identity()]; !ok {
			result.NewProducts = append(result.NewProducts, r)
		}
		if _, ok := startOutOfStock[r.Identity()]; ok && !r.OutOfStock() {
			result.Restocked = append(result.Restocked, r)
		}
	}
	for _, r := range start {
		if _, ok := endIDs[r.Identity()]; !ok {
			result.Delisted = append(result.Delisted, r)
		}
	}

	result.WentOutOfStock = wentOutOfStock(records, from, to)

	if f.Scope == ScopeAll {
		result.NewProducts = f.apply(result.NewProducts)
		result.Delisted = f.apply(result.Delisted)
		result.Restocked = f.apply(result.Restocked)
		// Rank only matching products so the limit counts filtered movers.
		start, end = f.apply(start), f.apply(end)
	}
	result.TopPriceChanges = topPriceChanges(start, end, TopPriceChangeLimit)
	result.WentOutOfStock = filterTransitions(result.WentOutOfStock, f)
	return result
}

// Dates returns the distinct snapshot dates present in records, ascending.
func Dates(records []catalog.Record) []time.Time {
	seen := map[time.Time]struct{}{}
	var dates []time.Time
	for _, r := range records {
		d := catalog.Day(r.Date)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// wentOutOfStock walks consecutive data dates in [from, to]. Only the first
// transition per identity is kept.
func wentOutOfStock(records []catalog.Record, from, to time.Time) []StockTransition {
	var dates []time.Time
	for _, d := range Dates(records) {
		if !d.Before(from) && !d.After(to) {
			dates = append(dates, d)
		}
	}

	byDate := map[time.Time][]catalog.Record{}
	for _, r := range records {
		d := catalog.Day(r.Date)
		byDate[d] = append(byDate[d], r)
	}

	seen := map[catalog.Identity]struct{}{}
	var out []StockTransition
	for i := 1; i < len(dates); i++ {
		prev, curr := dates[i-1], dates[i]
		available := identities(byDate[prev], inStock)
		for _, r := range byDate[curr] {
			if !r.OutOfStock() {
				continue
			}
			id := r.Identity()
			if _, ok := available[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, StockTransition{Record: r, WentOutOfStockOn: curr})
		}
	}
	return out
}

// topPriceChanges joins end against start on identity, in end order, and
// returns the largest absolute deltas. Ties keep join order.
func topPriceChanges(start, end []catalog.Record, limit int) []PriceChange {
	startByID := map[catalog.Identity][]catalog.Record{}
	for _, r := range start {
		startByID[r.Identity()] = append(startByID[r.Identity()], r)
	}

	var joined []PriceChange
	for _, e := range end {
		for _, s := range startByID[e.Identity()] {
			if !e.Price.Valid() || !s.Price.Valid() {
				continue
			}
			joined = append(joined, PriceChange{
				Identity:  e.Identity(),
				FromPrice: s.Price,
				ToPrice:   e.Price,
				Change:    e.Price.Sub(s.Price),
			})
		}
	}

	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].Change.Abs().Cmp(joined[j].Change.Abs()) > 0
	})
	if len(joined) > limit {
		joined = joined[:limit]
	}
	return joined
}

func snapshotAt(records []catalog.Record, date time.Time) []catalog.Record {
	var out []catalog.Record
	for _, r := range records {
		if catalog.Day(r.Date).Equal(date) {
			out = append(out, r)
		}
	}
	return out
}

func identities(records []catalog.Record, keep func(catalog.Record) bool) map[catalog.Identity]struct{} {
	out := make(map[catalog.Identity]struct{}, len(records))
	for _, r := range records {
		if keep == nil || keep(r) {
			out[r.Identity()] = struct{}{}
		}
	}
	return out
}

func inStock(r catalog.Record) bool {
	return !r.OutOfStock()
}

func filterTransitions(in []StockTransition, f Filters) []StockTransition {
	if len(f.Categories) == 0 && len(f.Vendors) == 0 {
		return in
	}
	var out []StockTransition
	for _, t := range in {
		if f.match(t.Record) {
			out = append(out, t)
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
