package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/insights"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only views over the combined archive.",
	}
	cmd.AddCommand(
		newVendorsReportCmd(a),
		newPromotionsReportCmd(a),
		newExploreReportCmd(a),
		newHyteReportCmd(a),
		newProfitReportCmd(a),
	)
	return cmd
}

// latestRecords loads the combined archive and keeps only the latest
// snapshot date, or all dates when all is set.
func (a *app) latestRecords(all bool) ([]catalog.Record, error) {
	records, err := a.store().LoadCombined()
	if err != nil {
		return nil, err
	}
	if all {
		return records, nil
	}
	latest, ok := insights.LatestDate(records)
	if !ok {
		return nil, nil
	}
	return insights.Explore(records, insights.ExploreFilter{From: latest, To: latest}), nil
}

type vendorStatsView struct {
	Source     string `json:"source"`
	Products   int    `json:"products"`
	MeanPrice  string `json:"meanPrice,omitempty"`
	StdPrice   string `json:"stdPrice,omitempty"`
	Categories int    `json:"categories"`
}

func newVendorsReportCmd(a *app) *cobra.Command {
	var all, asJSON bool
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Product counts and price statistics per source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.latestRecords(all)
			if err != nil {
				return err
			}
			stats := insights.VendorSnapshot(records)

			if asJSON {
				views := make([]vendorStatsView, 0, len(stats))
				for _, s := range stats {
					views = append(views, vendorStatsView{
						Source:     s.Source,
						Products:   s.Products,
						MeanPrice:  s.MeanPrice.Round(2).String(),
						StdPrice:   s.StdPrice.Round(2).String(),
						Categories: s.Categories,
					})
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}

			t := newTable(cmd.OutOrStdout(), "Vendor snapshot", table.Row{"Source", "Products", "Mean price", "Std price", "Categories"})
			for _, s := range stats {
				t.AppendRow(table.Row{s.Source, s.Products, s.MeanPrice.Round(2).String(), s.StdPrice.Round(2).String(), s.Categories})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include every snapshot date, not only the latest")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newPromotionsReportCmd(a *app) *cobra.Command {
	var all, asJSON bool
	cmd := &cobra.Command{
		Use:   "promotions",
		Short: "Listings whose name advertises a bundle, gift or freebie.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.latestRecords(all)
			if err != nil {
				return err
			}
			promos := insights.Promotions(records)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), viewsOf(promos))
			}
			renderRecords(cmd.OutOrStdout(), "Promotions", promos)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include every snapshot date, not only the latest")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newExploreReportCmd(a *app) *cobra.Command {
	var (
		category string
		vendors  []string
		from, to string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Lists archived records by category, vendor and date range.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDay, err := parseDay("from", from)
			if err != nil {
				return err
			}
			toDay, err := parseDay("to", to)
			if err != nil {
				return err
			}
			records, err := a.store().LoadCombined()
			if err != nil {
				return err
			}
			if err := insights.CheckVendors(records, vendors); err != nil {
				return err
			}
			found := insights.Explore(records, insights.ExploreFilter{
				Category: category,
				Vendors:  vendors,
				From:     fromDay,
				To:       toDay,
			})
			if limit > 0 && len(found) > limit {
				found = found[:limit]
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), viewsOf(found))
			}
			renderRecords(cmd.OutOrStdout(), "Explore", found)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category to keep")
	cmd.Flags().StringSliceVar(&vendors, "vendor", nil, "vendor key to keep (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

type caseView struct {
	recordView
	Model string `json:"model"`
}

type sourceMeanView struct {
	Source    string `json:"source"`
	MeanPrice string `json:"meanPrice,omitempty"`
}

type hyteView struct {
	Listings []caseView       `json:"listings"`
	BySource []sourceMeanView `json:"meanPriceBySource"`
}

func newHyteReportCmd(a *app) *cobra.Command {
	var (
		vendors []string
		models  []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "hyte",
		Short: "Tracks HYTE case prices across every snapshot date.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.store().LoadCombined()
			if err != nil {
				return err
			}
			if err := insights.CheckVendors(records, vendors); err != nil {
				return err
			}
			listings := insights.HyteCases(records, insights.CaseFilter{Vendors: vendors, Models: models})
			means := insights.MeanPriceBySource(listings)

			if asJSON {
				v := hyteView{
					Listings: make([]caseView, 0, len(listings)),
					BySource: make([]sourceMeanView, 0, len(means)),
				}
				for _, l := range listings {
					v.Listings = append(v.Listings, caseView{recordView: viewOf(l.Record), Model: l.Model})
				}
				for _, m := range means {
					v.BySource = append(v.BySource, sourceMeanView{Source: m.Source, MeanPrice: m.Mean.Round(2).String()})
				}
				return writeJSON(cmd.OutOrStdout(), v)
			}

			t := newTable(cmd.OutOrStdout(), "HYTE cases", table.Row{"Date", "Vendor", "Model", "Product", "Price", "Stock"})
			for _, l := range listings {
				t.AppendRow(table.Row{catalog.FormatDate(l.Date), l.VendorKey, l.Model, l.ProductName, l.Price.String(), l.StockStatus})
			}
			t.Render()

			t = newTable(cmd.OutOrStdout(), "Average price by source", table.Row{"Source", "Mean price"})
			for _, m := range means {
				t.AppendRow(table.Row{m.Source, m.Mean.Round(2).String()})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&vendors, "vendor", nil, "vendor key to keep (repeatable)")
	cmd.Flags().StringSliceVar(&models, "model", nil, "HYTE model to keep: Y40, Y70, Y60, Revolt, Other (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

type profitView struct {
	recordView
	Cost   string `json:"estimatedCost,omitempty"`
	Profit string `json:"estimatedProfit,omitempty"`
}

func newProfitReportCmd(a *app) *cobra.Command {
	var (
		markup int
		all    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "profit",
		Short: "Estimates cost and profit per listing for a given markup.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.latestRecords(all)
			if err != nil {
				return err
			}
			groups, err := insights.EstimateProfit(records, markup)
			if err != nil {
				return err
			}

			if asJSON {
				out := map[string][]profitView{}
				for _, g := range groups {
					views := make([]profitView, 0, len(g.Estimates))
					for _, e := range g.Estimates {
						views = append(views, profitView{
							recordView: viewOf(e.Record),
							Cost:       e.Cost.Round(2).String(),
							Profit:     e.Profit.Round(2).String(),
						})
					}
					out[g.Category] = views
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			for _, g := range groups {
				t := newTable(cmd.OutOrStdout(), g.Category, table.Row{"Product", "Price", "Estimated cost", "Estimated profit", "Source"})
				for _, e := range g.Estimates {
					t.AppendRow(table.Row{e.ProductName, e.Price.String(), e.Cost.Round(2).String(), e.Profit.Round(2).String(), e.SourceFile})
				}
				t.Render()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&markup, "markup", insights.DefaultMarkup, "estimated markup percent (0-100)")
	cmd.Flags().BoolVar(&all, "all", false, "include every snapshot date, not only the latest")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
