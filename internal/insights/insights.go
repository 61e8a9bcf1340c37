// Package insights holds the read-only views over the combined archive that
// the reporting commands render: the product explorer, per-source vendor
// statistics, promotion listings, the HYTE case tracker and the profit
// estimator.
package insights

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

var promotionPattern = regexp.MustCompile(`(?i)bundle|free|gift|combo`)

// ErrUnknownVendor is returned by CheckVendors for a vendor key the archive
// has never seen.
var ErrUnknownVendor = errors.New("unknown vendor")

// ExploreFilter selects records for the explorer. Zero values do not filter.
type ExploreFilter struct {
	Category string
	Vendors  []string
	From     time.Time
	To       time.Time
}

// Explore returns the records matching f, in archive order. The date range
// is inclusive on both ends.
func Explore(records []catalog.Record, f ExploreFilter) []catalog.Record {
	var out []catalog.Record
	for _, r := range records {
		if f.Category != "" && !strings.EqualFold(r.Category(), f.Category) {
			continue
		}
		if len(f.Vendors) > 0 && !contains(f.Vendors, r.VendorKey) {
			continue
		}
		if !f.From.IsZero() && r.Date.Before(catalog.Day(f.From)) {
			continue
		}
		if !f.To.IsZero() && r.Date.After(catalog.Day(f.To)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// VendorStats summarises one source file (vendor key plus snapshot date).
type VendorStats struct {
	Source     string
	Products   int
	MeanPrice  catalog.Price
	StdPrice   catalog.Price
	Categories int
}

// VendorSnapshot groups records by source and reports product counts, the
// mean and sample deviation of listed prices, and the number of distinct
// categories. Sources are sorted by name.
func VendorSnapshot(records []catalog.Record) []VendorStats {
	type group struct {
		products   int
		prices     []catalog.Price
		categories map[string]struct{}
	}
	groups := map[string]*group{}
	for _, r := range records {
		src := catalog.Stem(r.SourceFile)
		g, ok := groups[src]
		if !ok {
			g = &group{categories: map[string]struct{}{}}
			groups[src] = g
		}
		g.products++
		g.prices = append(g.prices, r.Price)
		g.categories[r.Category()] = struct{}{}
	}

	out := make([]VendorStats, 0, len(groups))
	for src, g := range groups {
		mean, std := catalog.MeanStd(g.prices)
		out = append(out, VendorStats{
			Source:     src,
			Products:   g.products,
			MeanPrice:  mean,
			StdPrice:   std,
			Categories: len(g.categories),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Promotions returns records whose product name mentions a bundle, combo,
// gift or free item.
func Promotions(records []catalog.Record) []catalog.Record {
	var out []catalog.Record
	for _, r := range records {
		if promotionPattern.MatchString(r.ProductName) {
			out = append(out, r)
		}
	}
	return out
}

// LatestDate is the most recent snapshot date in records.
func LatestDate(records []catalog.Record) (time.Time, bool) {
	var latest time.Time
	for _, r := range records {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest, !latest.IsZero()
}

// Vendors lists the distinct vendor keys in records, sorted.
func Vendors(records []catalog.Record) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range records {
		if _, ok := seen[r.VendorKey]; ok || r.VendorKey == "" {
			continue
		}
		seen[r.VendorKey] = struct{}{}
		out = append(out, r.VendorKey)
	}
	sort.Strings(out)
	return out
}

// CheckVendors fails on the first requested vendor key that does not occur
// in records. No requested vendors always passes.
func CheckVendors(records []catalog.Record, vendors []string) error {
	if len(vendors) == 0 {
		return nil
	}
	known := Vendors(records)
	for _, v := range vendors {
		if !contains(known, v) {
			return fmt.Errorf("%w %q (known: %s)", ErrUnknownVendor, v, strings.Join(known, ", "))
		}
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
