package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Payment metrics
	PaymentInitiationsTotal *prometheus.CounterVec
	CallbacksTotal          *prometheus.CounterVec
	StatusPollsTotal        *prometheus.CounterVec
}

// New creates a Metrics instance registered on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "checkout",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "checkout",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "checkout",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		PaymentInitiationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "checkout",
				Subsystem: "payment",
				Name:      "initiations_total",
				Help:      "Total number of debit initiations by result",
			},
			[]string{"result"}, // accepted, rejected, unavailable, conflict, invalid
		),
		CallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "checkout",
				Subsystem: "payment",
				Name:      "callbacks_total",
				Help:      "Total number of provider callbacks by disposition",
			},
			[]string{"disposition"}, // accepted, bad_token, malformed
		),
		StatusPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "checkout",
				Subsystem: "payment",
				Name:      "status_polls_total",
				Help:      "Total number of client status polls by reported state",
			},
			[]string{"state"},
		),
	}
}

// Middleware returns an echo middleware that records HTTP metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			path := c.Path() // route pattern, not actual path
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				} else {
					status = 500
				}
			}

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
