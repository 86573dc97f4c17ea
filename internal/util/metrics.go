package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_uploads_total",
		Help: "Total number of uploaded files by result",
	}, []string{"result"})

	RowsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_rows_ingested_total",
		Help: "Total number of order rows accepted from uploads",
	})

	RowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_rows_skipped_total",
		Help: "Total number of order rows dropped because the log date could not be parsed",
	})

	RowsClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_rows_classified_total",
		Help: "Total number of classified rows by status",
	}, []string{"status"})

	AnalysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_analysis_runs_total",
		Help: "Total number of analysis runs by result",
	}, []string{"result"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_analysis_duration_seconds",
		Help:    "Latency of classify and aggregate over a session dataset",
		Buckets: prometheus.DefBuckets,
	})

	ThresholdDays = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_threshold_days",
		Help:    "Staleness thresholds requested by users",
		Buckets: []float64{30, 60, 90, 180, 360, 540, 720},
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_published_total",
		Help: "Total number of analysis events published",
	}, []string{"event_type"})

	EventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_failed_total",
		Help: "Total number of analysis events that could not be published",
	}, []string{"event_type"})

	RunsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_runs_recorded_total",
		Help: "Total number of analysis runs written to the audit store",
	})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_rate_limited_total",
		Help: "Total number of requests rejected by the upload rate limiter",
	}, []string{"path"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
