package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	LiveWindowBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fpstreamer_live_window_bytes",
		Help: "Bytes currently held in the live sample window",
	}, []string{"channel"})
	RecordWindowBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fpstreamer_record_window_bytes",
		Help: "Bytes currently held in the record sample window",
	}, []string{"channel"})
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fpstreamer_queue_depth",
		Help: "PCM chunks waiting between capture and fingerprinting",
	}, []string{"channel"})
	ActivePipelines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fpstreamer_active_pipelines",
		Help: "Number of running channel pipelines in this process",
	})
	UnitAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fpstreamer_supervisor_unit_alive",
		Help: "1 while the supervised pipeline group is alive",
	})
	UnitRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fpstreamer_supervisor_unit_rss_bytes",
		Help: "Resident set size of the supervised worker process",
	})
	UnitCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fpstreamer_supervisor_unit_cpu_percent",
		Help: "CPU usage of the supervised worker process",
	})
)

// Counters
var (
	ChunksCapturedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fpstreamer_chunks_captured_total",
		Help: "PCM chunks produced by the decoder",
	}, []string{"channel"})
	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fpstreamer_decode_errors_total",
		Help: "Decode calls that ended with a non-zero status",
	}, []string{"channel"})
	ResolveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fpstreamer_resolve_failures_total",
		Help: "Playlist fetches or parses that fell back to the raw URL",
	})
	FingerprintsEmptyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fpstreamer_fingerprints_empty_total",
		Help: "Fingerprint computations that produced nothing to upload",
	}, []string{"kind"})
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fpstreamer_uploads_total",
		Help: "Fingerprint uploads by kind and outcome",
	}, []string{"kind", "outcome"})
	RestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fpstreamer_supervisor_restarts_total",
		Help: "Pipeline group restarts by reason",
	}, []string{"reason"})
)

// Histograms
var (
	UploadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fpstreamer_upload_duration_ms",
		Help:    "Upload round trip in milliseconds by kind",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
	}, []string{"kind"})
)
