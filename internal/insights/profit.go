package insights

import (
	"fmt"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

// DefaultMarkup is the markup percent assumed when none is given.
const DefaultMarkup = 35

// ProfitCategories are the categories the estimator reports, in order.
var ProfitCategories = []string{catalog.CategoryCase, catalog.CategoryCPU, catalog.CategoryGPU}

type ProfitEstimate struct {
	catalog.Record
	Cost   catalog.Price
	Profit catalog.Price
}

type ProfitGroup struct {
	Category  string
	Estimates []ProfitEstimate
}

// EstimateProfit prices each listing's cost as price × (1 − markup/100) and
// its profit as price − cost, grouped by ProfitCategories in archive order.
// Listings without a price keep missing cost and profit. Markup is a percent
// in [0, 100].
func EstimateProfit(records []catalog.Record, markup int) ([]ProfitGroup, error) {
	if markup < 0 || markup > 100 {
		return nil, fmt.Errorf("markup %d out of range 0-100", markup)
	}
	groups := make([]ProfitGroup, len(ProfitCategories))
	index := map[string]int{}
	for i, c := range ProfitCategories {
		groups[i].Category = c
		index[c] = i
	}
	for _, r := range records {
		i, ok := index[r.Category()]
		if !ok {
			continue
		}
		cost := r.Price.Percent(int64(100 - markup))
		groups[i].Estimates = append(groups[i].Estimates, ProfitEstimate{
			Record: r,
			Cost:   cost,
			Profit: r.Price.Sub(cost),
		})
	}
	return groups, nil
}
