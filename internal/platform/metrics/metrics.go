// Package metrics holds the Prometheus collectors for backend calls, screen
// loads, mutations and snapshot fallbacks, plus the echo handler that exposes
// them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_backend_calls_total",
			Help: "Total number of backend calls made by resource clients",
		},
		[]string{"resource", "op", "status"},
	)

	backendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emr_backend_call_duration_seconds",
			Help:    "Backend call duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"resource", "op"},
	)

	screenLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_screen_loads_total",
			Help: "Screen loads by outcome (loaded, failed, partial, stale)",
		},
		[]string{"screen", "outcome"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_mutations_total",
			Help: "Mutation coordinator runs by kind and outcome",
		},
		[]string{"screen", "kind", "outcome"},
	)

	snapshotFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_snapshot_fallbacks_total",
			Help: "Screens served from the snapshot cache after a failed load",
		},
		[]string{"screen"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_http_requests_total",
			Help: "Total number of HTTP requests served to browsers",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveBackendCall records one resource client call. status is the HTTP
// status, or zero when the backend was unreachable.
func ObserveBackendCall(resource, op string, status int, d time.Duration) {
	backendCallsTotal.WithLabelValues(resource, op, strconv.Itoa(status)).Inc()
	backendCallDuration.WithLabelValues(resource, op).Observe(d.Seconds())
}

// ObserveScreenLoad records the outcome of a screen load.
func ObserveScreenLoad(screen, outcome string) {
	screenLoadsTotal.WithLabelValues(screen, outcome).Inc()
}

// ObserveMutation records a mutation coordinator run.
func ObserveMutation(screen, kind, outcome string) {
	mutationsTotal.WithLabelValues(screen, kind, outcome).Inc()
}

// ObserveSnapshotFallback records a load served from the snapshot cache.
func ObserveSnapshotFallback(screen string) {
	snapshotFallbacksTotal.WithLabelValues(screen).Inc()
}

// Middleware counts browser requests by route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
