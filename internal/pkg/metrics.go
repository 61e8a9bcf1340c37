package pkg

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of a batch run. Runs are short-lived, so the
// registry is flushed to a node-exporter textfile rather than served.
type Metrics struct {
	Registry *prometheus.Registry

	FilesNormalized     prometheus.Counter
	FilesSkipped        prometheus.Counter
	RecordsArchived     prometheus.Counter
	RecordsDeduplicated prometheus.Counter
	RecordsMirrored     prometheus.Counter
	EventsPublished     prometheus.Counter
	LastRun             prometheus.Gauge
	DiffDuration        prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_files_normalized_total",
			Help: "Raw export files normalized.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_files_skipped_total",
			Help: "Raw export files skipped as malformed or unreadable.",
		}),
		RecordsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_records_archived_total",
			Help: "Normalized records written to daily snapshots.",
		}),
		RecordsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_records_deduplicated_total",
			Help: "Records dropped from the combined archive as exact duplicates.",
		}),
		RecordsMirrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_records_mirrored_total",
			Help: "Records inserted into the history store.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_diff_events_published_total",
			Help: "Diff events published to Kafka.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		}),
		DiffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_diff_duration_seconds",
			Help:    "Time spent computing a diff.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(
		m.FilesNormalized,
		m.FilesSkipped,
		m.RecordsArchived,
		m.RecordsDeduplicated,
		m.RecordsMirrored,
		m.EventsPublished,
		m.LastRun,
		m.DiffDuration,
	)
	return m
}

// MarkRun sets the last-run gauge to t.
func (m *Metrics) MarkRun(t time.Time) {
	m.LastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry in the text exposition format. An empty
// path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics error: %w", err)
	}
	return nil
}
