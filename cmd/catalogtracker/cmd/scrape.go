package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

func newScrapeCmd(a *app) *cobra.Command {
	var vendors []string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs the configured vendor scrapers and writes raw exports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := a.config.VendorsNamed(vendors)
			if err != nil {
				return err
			}
			scraper := pkg.NewScraper(a.config.Scrape, a.logger)
			written, err := scraper.Run(cmd.Context(), selected, a.config.ExportDir, catalog.Day(time.Now()))
			if err != nil {
				return err
			}
			a.logger.Info("scrape finished", "vendors", len(selected), "exports", len(written), "dir", a.config.ExportDir)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&vendors, "vendor", nil, "vendor name to scrape (repeatable, default all)")
	return cmd
}
