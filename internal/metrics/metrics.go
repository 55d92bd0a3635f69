package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and histograms, partitioned by channel (subreddit).

var (
	// Orchestrator
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "cycles_total",
		Help:      "Total ingestion cycles started",
	}, []string{"channel"})

	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "cycle_errors_total",
		Help:      "Total ingestion cycles that failed to fetch their page",
	}, []string{"channel"})

	CycleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "cycle_duration_seconds",
		Help:      "Ingestion cycle duration including comment pacing",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"channel"})

	SnapshotsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "snapshots_saved_total",
		Help:      "Total new item snapshots stored",
	}, []string{"channel"})

	ExtractionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "extractions_saved_total",
		Help:      "Total extraction records stored",
	}, []string{"channel", "coin", "status"})

	NewAddresses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "new_addresses_total",
		Help:      "Total address aggregates created",
	}, []string{"coin"})

	ItemErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "ingest",
		Name:      "item_errors_total",
		Help:      "Total items skipped because processing failed",
	}, []string{"channel"})

	// Connector
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "connector",
		Name:      "requests_total",
		Help:      "Upstream HTTP attempts by outcome (status code or 'error')",
	}, []string{"source", "outcome"})

	// Queue
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "queue",
		Name:      "jobs_enqueued_total",
		Help:      "Total ingestion jobs pushed to the queue",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "queue",
		Name:      "jobs_processed_total",
		Help:      "Total queued jobs processed by outcome",
	}, []string{"status"})

	// Scheduler
	SchedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "discovery",
		Subsystem: "scheduler",
		Name:      "running",
		Help:      "1 while the periodic scheduler is active",
	})

	// API
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Inbound HTTP requests by route template and status",
	}, []string{"method", "route", "status"})
)
