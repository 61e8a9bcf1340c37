package pkg

import (
	"context"
	"errors"
	"time"

	"github.com/ex-n-soldiers/catalog-tracker/internal/archive"
	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/diff"
	"github.com/ex-n-soldiers/catalog-tracker/internal/insights"
)

// ErrNotEnoughSnapshots is returned when a default date range is requested
// but the archive holds fewer than two snapshot dates.
var ErrNotEnoughSnapshots = errors.New("need at least two snapshot dates")

// EventPublisher is satisfied by notify.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, r diff.Result) (int, error)
}

// DiffOptions selects the compared range. A zero From or To defaults to the
// two latest snapshot dates in the archive.
type DiffOptions struct {
	From      time.Time
	To        time.Time
	Filters   diff.Filters
	Publisher EventPublisher
	Metrics   *Metrics
}

// RunDiff loads the combined archive, rejects vendor filters the archive
// has never seen, computes the diff and publishes it when
// a publisher is set. It returns the number of events published.
func RunDiff(ctx context.Context, store *archive.Store, opts DiffOptions) (diff.Result, int, error) {
	records, err := store.LoadCombined()
	if err != nil {
		return diff.Result{}, 0, err
	}
	if err := insights.CheckVendors(records, opts.Filters.Vendors); err != nil {
		return diff.Result{}, 0, err
	}
	from, to := opts.From, opts.To
	if from.IsZero() || to.IsZero() {
		prev, latest, ok := LatestPair(records)
		if !ok {
			return diff.Result{}, 0, ErrNotEnoughSnapshots
		}
		if from.IsZero() {
			from = prev
		}
		if to.IsZero() {
			to = latest
		}
	}

	start := time.Now()
	result := diff.Compute(records, from, to, opts.Filters)
	if opts.Metrics != nil {
		opts.Metrics.DiffDuration.Observe(time.Since(start).Seconds())
	}

	if opts.Publisher == nil {
		return result, 0, nil
	}
	n, err := opts.Publisher.Publish(ctx, result)
	if err != nil {
		return result, 0, err
	}
	if opts.Metrics != nil {
		opts.Metrics.EventsPublished.Add(float64(n))
	}
	return result, n, nil
}

// LatestPair returns the two most recent snapshot dates.
func LatestPair(records []catalog.Record) (prev, latest time.Time, ok bool) {
	dates := diff.Dates(records)
	if len(dates) < 2 {
		return time.Time{}, time.Time{}, false
	}
	return dates[len(dates)-2], dates[len(dates)-1], true
}
