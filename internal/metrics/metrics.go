// Package metrics exposes Prometheus counters for the giveaway lifecycle and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label names
const (
	LabelResult  = "result"
	LabelOutcome = "outcome"
	LabelTrigger = "trigger"
	LabelKind    = "kind"
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
)

// Finalization triggers
const (
	TriggerTimer    = "timer"
	TriggerAdmin    = "admin"
	TriggerManual   = "manual"
	TriggerRecovery = "recovery"
)

// Giveaway metrics
var (
	GiveawaysCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giveaways_created_total",
			Help: "Total number of giveaways created",
		},
	)

	GiveawaysOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giveaways_open",
			Help: "Number of giveaways currently accepting participants",
		},
	)

	JoinAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_join_attempts_total",
			Help: "Total number of join attempts by result",
		},
		[]string{LabelResult},
	)

	GiveawaysFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaways_finalized_total",
			Help: "Total number of finalized giveaways",
		},
		[]string{LabelOutcome, LabelTrigger},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_notification_failures_total",
			Help: "Total number of channel announcements that could not be delivered",
		},
		[]string{LabelKind},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giveaway_persistence_failures_total",
			Help: "Total number of snapshot writes that failed",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)
)

// GinMiddleware collects HTTP request metrics. Unmatched routes are grouped
// under one path label to keep cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
