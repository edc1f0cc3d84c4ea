package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CommissionsDistributed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commissions_distributed_total",
			Help: "Commission transactions credited, by sponsor level",
		},
		[]string{"level"},
	)

	CommissionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_commission_failures_total",
			Help: "Commission walks that stopped early on an error",
		},
	)

	ReconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reconciliation_runs_total",
			Help: "Reconciliation runs by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ReconciliationCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reconciliation_corrections_total",
			Help: "Rows rewritten by reconciliation, by kind",
		},
		[]string{"kind"},
	)

	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_reconciliation_duration_seconds",
			Help:    "Wall time of a full reconciliation run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	WalletDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_wallet_drift_users",
			Help: "Wallets whose stored balance disagreed with the ledger at the last audit",
		},
	)
)

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HttpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		ResponseTimeHistogram.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
