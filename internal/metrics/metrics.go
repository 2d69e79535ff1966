package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Request duration histogram with method, endpoint and status labels
	RequestDuration *prometheus.HistogramVec
	// Payment webhook outcomes per provider
	PaymentWebhooks *prometheus.CounterVec
	// Panel calls by operation and status
	PanelRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "request_duration_seconds",
			Help: "Duration of HTTP requests in seconds.",
		},
			[]string{"method", "endpoint", "status"},
		),
		PaymentWebhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment webhook deliveries by provider and outcome.",
		},
			[]string{"provider", "outcome"},
		),
		PanelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_requests_total",
			Help: "Marzban panel calls by operation and status.",
		},
			[]string{"operation", "status"},
		),
	}
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.PaymentWebhooks)
	reg.MustRegister(m.PanelRequests)
	return m
}

// Middleware records a duration sample for every completed request. The
// observation is deferred until the response commits, so the status is the
// one the error handler actually wrote, not whatever errored out of the
// handler chain.
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		res := c.Response()
		res.After(func() {
			m.RequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(res.Status)).
				Observe(time.Since(start).Seconds())
		})
		return next(c)
	}
}
