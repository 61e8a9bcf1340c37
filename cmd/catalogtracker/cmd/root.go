package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/archive"
	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

// app is the state shared by subcommands once the config is loaded.
type app struct {
	configDir string
	config    pkg.Config
	logger    *slog.Logger
	metrics   *pkg.Metrics
}

func (a *app) store() *archive.Store {
	return archive.NewStore(a.config.ArchiveDir, a.config.CombinedPath)
}

func (a *app) sqlitePath() string {
	if a.config.SQLitePath != "" {
		return a.config.SQLitePath
	}
	return filepath.Join(a.config.ArchiveDir, "normalized_combined.sqlite")
}

// NewRootCmd builds the catalogtracker command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "catalogtracker",
		Short:         "catalogtracker normalizes vendor catalog scrapes and reports what changed between days.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := pkg.ConfigureFrom(a.configDir)
			if err != nil {
				return err
			}
			a.config = config
			a.logger = pkg.NewLogger(cmd.ErrOrStderr(), config.LogLevel)
			a.metrics = pkg.NewMetrics()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.metrics.WriteTextfile(a.config.MetricsTextfile)
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", filepath.Join(".", "conf"), "directory holding config.yml or config-local.yml")

	root.AddCommand(
		newScrapeCmd(a),
		newIngestCmd(a),
		newRebuildCmd(a),
		newDiffCmd(a),
		newReportCmd(a),
		newExportCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRebuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recombines every daily snapshot into the combined archive.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			n, err := store.Rebuild()
			if err != nil {
				return err
			}
			a.logger.Info("combined archive rebuilt", "records", n, "file", store.CombinedPath())
			return nil
		},
	}
}

// parseDay parses a YYYY-MM-DD flag value. Empty means unset.
func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := catalog.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", flag, value)
	}
	return d, nil
}
