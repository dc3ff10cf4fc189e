package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bondcurve_api_build_info",
			Help: "Build information of the bondcurve API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bondcurve_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bondcurve_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bondcurve_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Trading metrics
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bondcurve_api_trades_total",
			Help: "Total number of buy and sell operations",
		},
		[]string{"side", "status"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bondcurve_api_payments_total",
			Help: "Total number of pay operations",
		},
		[]string{"status"},
	)

	StakeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bondcurve_api_stake_operations_total",
			Help: "Total number of stake and reward operations",
		},
		[]string{"op", "status"},
	)

	CurvesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bondcurve_api_curves_active",
			Help: "Number of curve instances currently registered",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTrade records a buy or sell attempt.
func RecordTrade(side string, err error) {
	TradesTotal.WithLabelValues(side, statusLabel(err)).Inc()
}

// RecordPayment records a pay attempt.
func RecordPayment(err error) {
	PaymentsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordStakeOp records a stake or reward operation.
func RecordStakeOp(op string, err error) {
	StakeOpsTotal.WithLabelValues(op, statusLabel(err)).Inc()
}
