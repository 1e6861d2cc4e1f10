package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reply_server"

// Quota metrics
var (
	QuotaConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_consumed_total",
			Help:      "Total quota units consumed",
		},
		[]string{"dimension"}, // "monthly" or "daily"
	)

	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Total quota denials",
		},
		[]string{"dimension"},
	)

	QuotaRefunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_refunds_total",
			Help:      "Total quota units refunded after failed posts",
		},
		[]string{"dimension"},
	)
)

// Reply pipeline metrics
var (
	RepliesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_submitted_total",
			Help:      "Total reply submissions",
		},
		[]string{"outcome"}, // "posted", "queued", "denied"
	)

	RepliesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_dispatched_total",
			Help:      "Total queued replies processed by the dispatcher",
		},
		[]string{"status"}, // "posted", "failed", "drained", "deferred"
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Dispatch pass execution time distribution",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
		},
	)

	DispatchBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_batch_size",
			Help:      "Number of pending replies claimed per dispatch pass",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Pending replies remaining after the last dispatch pass",
		},
	)
)

// Upstream metrics
var (
	YouTubeAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_api_calls_total",
			Help:      "Total YouTube API calls",
		},
		[]string{"operation", "status"},
	)

	AIDraftCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_draft_calls_total",
			Help:      "Total AI draft generation calls",
		},
		[]string{"model", "status"},
	)

	RolloverRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollover_rows_total",
			Help:      "Total usage counter rows reset by the rollover job",
		},
		[]string{"period"}, // "month" or "day"
	)
)
