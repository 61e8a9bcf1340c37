package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		vendor string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history PRODUCT_NAME",
		Short: "Shows one product's mirrored history from the MySQL store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := pkg.GormConnect(a.config)
			if err != nil {
				return err
			}
			defer pkg.CloseDB(conn)

			records, err := pkg.History(conn, catalog.Identity{ProductName: args[0], VendorKey: vendor})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), viewsOf(records))
			}
			renderRecords(cmd.OutOrStdout(), args[0], records)
			return nil
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor key of the product")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}
