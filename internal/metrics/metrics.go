package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trivia_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Leaderboard metrics
	LeaderboardCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by board and result",
		},
		[]string{"board", "result"},
	)

	// Payment metrics
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_webhook_events_total",
			Help: "Verified payment webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Gameplay metrics
	AttemptsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_attempts_completed_total",
			Help: "Completed challenge attempts by completion reason",
		},
		[]string{"reason"},
	)

	ActiveAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trivia_active_attempts",
			Help: "Number of challenge attempts currently in progress",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LeaderboardCacheTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(AttemptsCompletedTotal)
	prometheus.MustRegister(ActiveAttempts)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
