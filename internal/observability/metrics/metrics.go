package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gridloss_"

	resultSuccess  = "success"
	resultError    = "error"
	resultFallback = "fallback"
)

var (
	registerOnce sync.Once

	rebuildTotal   *prometheus.CounterVec
	rebuildLatency *prometheus.HistogramVec
	rowsIngested   *prometheus.CounterVec

	snapshotVersion prometheus.Gauge
	entityCount     *prometheus.GaugeVec
	totalLoss       *prometheus.GaugeVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	queryTotal *prometheus.CounterVec

	streamClients prometheus.Gauge
	streamSent    *prometheus.CounterVec
)

// Init registers the engine metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		rebuildTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rebuild_total",
				Help: "Total snapshot rebuilds by result",
			},
			[]string{"result"},
		)
		rebuildLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rebuild_latency_seconds",
				Help:    "Snapshot rebuild latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		rowsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_ingested_total",
				Help: "Total input rows folded into snapshots by source",
			},
			[]string{"source"},
		)

		snapshotVersion = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "snapshot_version",
				Help: "Version of the latest published snapshot",
			},
		)
		entityCount = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "entities",
				Help: "Entities in the latest snapshot by level",
			},
			[]string{"level"},
		)
		totalLoss = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "network_loss_percent",
				Help: "Network-wide loss percentage of the latest snapshot by stage",
			},
			[]string{"stage"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total result exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Result export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		queryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_total",
				Help: "Total API queries by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		)

		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Connected snapshot stream clients",
			},
		)
		streamSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_messages_total",
				Help: "Snapshot stream messages by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			rebuildTotal,
			rebuildLatency,
			rowsIngested,
			snapshotVersion,
			entityCount,
			totalLoss,
			exportTotal,
			exportLatency,
			queryTotal,
			streamClients,
			streamSent,
		)
	})
}

// ObserveRebuild records rebuild duration and result.
func ObserveRebuild(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if rebuildTotal != nil {
		rebuildTotal.WithLabelValues(result).Inc()
	}
	if rebuildLatency != nil {
		rebuildLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddRowsIngested increments the ingested row counter for a source.
func AddRowsIngested(source string, rows int) {
	if rows <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if rowsIngested != nil {
		rowsIngested.WithLabelValues(source).Add(float64(rows))
	}
}

// SetSnapshot publishes gauges describing the latest snapshot.
func SetSnapshot(version int64, regions, feeders, dts, meters int, lossFdt, lossDtc, lossFc float64) {
	if snapshotVersion != nil {
		snapshotVersion.Set(float64(version))
	}
	if entityCount != nil {
		entityCount.WithLabelValues("region").Set(float64(regions))
		entityCount.WithLabelValues("feeder").Set(float64(feeders))
		entityCount.WithLabelValues("dt").Set(float64(dts))
		entityCount.WithLabelValues("meter").Set(float64(meters))
	}
	if totalLoss != nil {
		totalLoss.WithLabelValues("feeder_to_dt").Set(lossFdt)
		totalLoss.WithLabelValues("dt_to_consumer").Set(lossDtc)
		totalLoss.WithLabelValues("feeder_to_consumer").Set(lossFc)
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncQuery counts an API query by endpoint and status class.
func IncQuery(endpoint string, status int) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if queryTotal != nil {
		queryTotal.WithLabelValues(endpoint, statusClass(status)).Inc()
	}
}

// AddStreamClients adjusts the connected stream client gauge.
func AddStreamClients(delta int) {
	if streamClients != nil {
		streamClients.Add(float64(delta))
	}
}

// IncStreamMessage counts a stream delivery attempt.
func IncStreamMessage(result string) {
	if result == "" {
		result = resultSuccess
	}
	if streamSent != nil {
		streamSent.WithLabelValues(result).Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultFallback = resultFallback
	ResultDropped  = "dropped"
)
