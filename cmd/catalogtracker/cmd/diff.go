package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ex-n-soldiers/catalog-tracker/internal/diff"
	"github.com/ex-n-soldiers/catalog-tracker/internal/notify"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		from, to   string
		categories []string
		vendors    []string
		filterAll  bool
		asJSON     bool
		publish    bool
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compares two snapshot dates of the combined archive.",
		Long: "Compares two snapshot dates of the combined archive. Without --from and --to the\n" +
			"two latest snapshot dates are used. --category and --vendor narrow only the\n" +
			"went-out-of-stock list unless --filter-all is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDay, err := parseDay("from", from)
			if err != nil {
				return err
			}
			toDay, err := parseDay("to", to)
			if err != nil {
				return err
			}

			opts := pkg.DiffOptions{
				From:    fromDay,
				To:      toDay,
				Filters: diff.Filters{Categories: categories, Vendors: vendors},
				Metrics: a.metrics,
			}
			if filterAll {
				opts.Filters.Scope = diff.ScopeAll
			}
			if publish {
				if !a.config.Kafka.Enabled() {
					return errors.New("--publish needs kafka.brokers and kafka.topic in the config")
				}
				publisher := notify.NewPublisher(a.config.Kafka.Brokers, a.config.Kafka.Topic)
				defer publisher.Close()
				opts.Publisher = publisher
			}

			result, published, err := pkg.RunDiff(cmd.Context(), a.store(), opts)
			if err != nil {
				return err
			}
			if publish {
				a.logger.Info("diff events published", "events", published, "topic", a.config.Kafka.Topic)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), diffViewOf(result))
			}
			renderDiff(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start snapshot date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "end snapshot date YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "category to keep (repeatable)")
	cmd.Flags().StringSliceVar(&vendors, "vendor", nil, "vendor key to keep (repeatable)")
	cmd.Flags().BoolVar(&filterAll, "filter-all", false, "apply --category and --vendor to every result set")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish change events to Kafka")
	return cmd
}
