package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		date         string
		fromFileName bool
		sqlite       bool
		db           bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalizes the raw exports into a daily snapshot and the combined archive.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay("date", date)
			if err != nil {
				return err
			}
			if day.IsZero() {
				day = catalog.Day(time.Now())
			}

			opts := pkg.IngestOptions{
				ExportDir:        a.config.ExportDir,
				Date:             day,
				DateFromFileName: fromFileName,
				Metrics:          a.metrics,
				Logger:           a.logger,
			}
			if sqlite {
				opts.SQLitePath = a.sqlitePath()
			}
			if db || a.config.Db.Enabled {
				conn, err := pkg.GormConnect(a.config)
				if err != nil {
					return err
				}
				defer pkg.CloseDB(conn)
				if err := pkg.DbMigration(conn); err != nil {
					return err
				}
				opts.DB = conn
			}
			if a.config.S3.Enabled() {
				mirror, err := pkg.NewS3Mirror(a.config.S3, a.logger)
				if err != nil {
					return err
				}
				opts.S3 = mirror
			}

			result, err := pkg.Ingest(cmd.Context(), a.store(), opts)
			if err != nil {
				return err
			}
			a.logger.Info("ingest finished",
				"run", result.Manifest.RunID,
				"files", len(result.Manifest.Files),
				"skipped", len(result.Manifest.Skipped),
				"records", result.Manifest.Records,
				"added", result.CombinedAdded)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "snapshot date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&fromFileName, "from-filename", false, "date each file by its own _YYYY-MM-DD suffix")
	cmd.Flags().BoolVar(&sqlite, "sqlite", false, "also export the combined archive to SQLite")
	cmd.Flags().BoolVar(&db, "db", false, "also mirror records into the MySQL history store")
	return cmd
}
