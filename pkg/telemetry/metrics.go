package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agora"

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_deliveries_total",
		Help:      "Web push delivery attempts by notification type and result.",
	}, []string{"type", "result"})

	LiveBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_broadcasts_total",
		Help:      "Live-update events published by result.",
	}, []string{"result"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_connections",
		Help:      "Open realtime connections on this instance.",
	})

	StoriesArchived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stories_archived_total",
		Help:      "Stories hidden after expiry.",
	})

	FeedFanout = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fanout_timelines_total",
		Help:      "Timelines written by the feed fan-out.",
	})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_consumed_total",
		Help:      "Broker events handled by subject and result.",
	}, []string{"subject", "result"})
)

// Résultats normalisés pour les labels "result".
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultGone    = "gone"
)
