package insights

import (
	"sort"
	"strings"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

// HYTE case models. Names are tested in this order, so a name mentioning
// both Y40 and Y70 is a Y40.
const (
	ModelY40    = "Y40"
	ModelY70    = "Y70"
	ModelY60    = "Y60"
	ModelRevolt = "Revolt"
	ModelOther  = "Other"
)

var hyteModels = []string{ModelY40, ModelY70, ModelY60, ModelRevolt}

// HyteModel tags a case listing name with its HYTE model.
func HyteModel(name string) string {
	lower := strings.ToLower(name)
	for _, m := range hyteModels {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m
		}
	}
	return ModelOther
}

type CaseListing struct {
	catalog.Record
	Model string
}

// CaseFilter narrows HyteCases. Empty lists do not filter.
type CaseFilter struct {
	Vendors []string
	Models  []string
}

// HyteCases returns Case listings whose name mentions HYTE, tagged by model,
// newest date first and cheapest first within a date. Listings without a
// price come last in their date.
func HyteCases(records []catalog.Record, f CaseFilter) []CaseListing {
	var out []CaseListing
	for _, r := range records {
		if r.Category() != catalog.CategoryCase || !strings.Contains(strings.ToLower(r.ProductName), "hyte") {
			continue
		}
		model := HyteModel(r.ProductName)
		if len(f.Vendors) > 0 && !contains(f.Vendors, r.VendorKey) {
			continue
		}
		if len(f.Models) > 0 && !containsFold(f.Models, model) {
			continue
		}
		out = append(out, CaseListing{Record: r, Model: model})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Price.Valid() != b.Price.Valid() {
			return a.Price.Valid()
		}
		return a.Price.Cmp(b.Price) < 0
	})
	return out
}

type SourceMean struct {
	Source string
	Mean   catalog.Price
}

// MeanPriceBySource averages listed prices per source, cheapest source first.
// A source without any price has a missing mean and sorts last.
func MeanPriceBySource(listings []CaseListing) []SourceMean {
	prices := map[string][]catalog.Price{}
	for _, l := range listings {
		src := catalog.Stem(l.SourceFile)
		prices[src] = append(prices[src], l.Price)
	}
	out := make([]SourceMean, 0, len(prices))
	for src, p := range prices {
		mean, _ := catalog.MeanStd(p)
		out = append(out, SourceMean{Source: src, Mean: mean})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Mean.Valid() != b.Mean.Valid() {
			return a.Mean.Valid()
		}
		if c := a.Mean.Cmp(b.Mean); c != 0 {
			return c < 0
		}
		return a.Source < b.Source
	})
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
