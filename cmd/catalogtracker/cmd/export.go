package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/archive"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports the combined archive to other formats.",
	}

	var out string
	sqlite := &cobra.Command{
		Use:   "sqlite",
		Short: "Writes the combined archive to a SQLite database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.store().LoadCombined()
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = a.sqlitePath()
			}
			if err := archive.ExportSQLite(path, records); err != nil {
				return err
			}
			a.logger.Info("sqlite export written", "records", len(records), "file", path)
			return nil
		},
	}
	sqlite.Flags().StringVar(&out, "out", "", "database path (default sqlitePath from the config)")

	cmd.AddCommand(sqlite)
	return cmd
}
