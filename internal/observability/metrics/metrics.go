package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "geofleet_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	syncRuns    *prometheus.CounterVec
	syncLatency *prometheus.HistogramVec
	syncRows    *prometheus.CounterVec

	upsertActions *prometheus.CounterVec

	alertEvents *prometheus.CounterVec

	visitExportTotal   *prometheus.CounterVec
	visitExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total webhook ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total webhook ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Webhook ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		syncRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_sync_total",
				Help: "Total report sync windows by kind and result",
			},
			[]string{"kind", "result"},
		)
		syncLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_sync_latency_seconds",
				Help:    "Report sync window latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)
		syncRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_rows_fetched_total",
				Help: "Total report rows fetched by kind",
			},
			[]string{"kind"},
		)

		upsertActions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_upsert_actions_total",
				Help: "Total report upsert decisions by action",
			},
			[]string{"action"},
		)

		alertEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		visitExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "visit_export_total",
				Help: "Total visit export operations by format and result",
			},
			[]string{"format", "result"},
		)
		visitExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "visit_export_latency_seconds",
				Help:    "Visit export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			syncRuns,
			syncLatency,
			syncRows,
			upsertActions,
			alertEvents,
			visitExportTotal,
			visitExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records webhook ingest duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveSync records one report sync window.
func ObserveSync(kind, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if syncRuns != nil {
		syncRuns.WithLabelValues(kind, result).Inc()
	}
	if syncLatency != nil {
		syncLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddSyncRows counts fetched report rows.
func AddSyncRows(kind string, count int) {
	if count <= 0 {
		return
	}
	if syncRows != nil {
		syncRows.WithLabelValues(kind).Add(float64(count))
	}
}

// AddUpsertActions counts upsert decisions.
func AddUpsertActions(action string, count int) {
	if count <= 0 {
		return
	}
	if upsertActions != nil {
		upsertActions.WithLabelValues(action).Add(float64(count))
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEvents != nil {
		alertEvents.WithLabelValues(event).Inc()
	}
}

// ObserveVisitExport records export latency and result.
func ObserveVisitExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if visitExportTotal != nil {
		visitExportTotal.WithLabelValues(format, result).Inc()
	}
	if visitExportLatency != nil {
		visitExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	UpsertInserted  = "inserted"
	UpsertUpdated   = "updated"
	UpsertUnchanged = "unchanged"

	AlertCreated      = "created"
	AlertNotified     = "notified"
	AlertNotifyFailed = "notify_failed"
)
