// Package metrics holds Prometheus instruments that are used across the
// engine.  All collectors are registered with the global registry, so
// importing this package in cmd/migrate is enough to expose them on
// /metrics when the listener is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_runs_started_total",
			Help: "Cumulative number of import runs started.",
		})

	RowsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_rows_fetched_total",
			Help: "Cumulative number of source rows fetched from the remote store.",
		})

	EntriesImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_entries_imported_total",
			Help: "Cumulative number of local entries created.",
		})

	EntriesUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_entries_updated_total",
			Help: "Cumulative number of local entries refreshed in place.",
		})

	RowErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_row_errors_total",
			Help: "Cumulative number of rows skipped because of an error.",
		})

	AttachmentsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_attachments_registered_total",
			Help: "Cumulative number of binary resources registered locally.",
		})

	AttachmentsReused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_attachments_reused_total",
			Help: "Cumulative number of binary resources deduplicated by logical path.",
		})

	AttachmentsMissing = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wpmigrate_attachments_missing_total",
			Help: "Cumulative number of binary resources reported missing at the source.",
		})
)

func init() {
	prometheus.MustRegister(
		RunsStarted,
		RowsFetched,
		EntriesImported,
		EntriesUpdated,
		RowErrors,
		AttachmentsRegistered,
		AttachmentsReused,
		AttachmentsMissing,
	)
}
