// Package metrics exposes Prometheus collectors for the session client.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bootstrapOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitmask_bootstrap_outcomes_total",
		Help: "Bootstrap runs by terminal state.",
	}, []string{"state"})

	vpnProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitmask_vpn_probes_total",
		Help: "VPN readiness probes by result.",
	}, []string{"result"})

	apiCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitmask_api_calls_total",
		Help: "Calls to the bitmask core API by command and outcome.",
	}, []string{"command", "outcome"})

	apiCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bitmask_api_call_duration_seconds",
		Help:    "Duration of calls to the bitmask core API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	accountsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bitmask_accounts",
		Help: "Accounts currently held in the registry.",
	})

	panelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitmask_panel_requests_total",
		Help: "Panel API requests by method, path, and response status.",
	}, []string{"method", "path", "status"})
)

// PrometheusMiddleware returns a Gin middleware that counts panel API requests.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		panelRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler returns a Gin handler that serves Prometheus metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBootstrap records the terminal state of a bootstrap run.
func RecordBootstrap(state string) {
	bootstrapOutcomesTotal.WithLabelValues(state).Inc()
}

// RecordProbe records a VPN readiness probe result.
func RecordProbe(ready bool, err error) {
	switch {
	case err != nil:
		vpnProbesTotal.WithLabelValues("error").Inc()
	case ready:
		vpnProbesTotal.WithLabelValues("ready").Inc()
	default:
		vpnProbesTotal.WithLabelValues("not_ready").Inc()
	}
}

// RecordAPICall records one call to the core API. Its signature matches
// bitmask.CallObserver.
func RecordAPICall(command string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	apiCallsTotal.WithLabelValues(command, outcome).Inc()
	apiCallDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// SetAccounts sets the registry size gauge.
func SetAccounts(n int) {
	accountsTotal.Set(float64(n))
}
