package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "propertyhub"

// Metrics groups every collector the service exports.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	backups         *prometheus.CounterVec
	backupDuration  prometheus.Histogram
	restores        *prometheus.CounterVec
	overdueMarked   prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "created_total",
			Help:      "Backups attempted by reason and result.",
		}, []string{"reason", "result"}),
		backupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "duration_seconds",
			Help:      "Time spent taking a backup.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		restores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "restores_total",
			Help:      "Restores by result.",
		}, []string{"result"}),
		overdueMarked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_marked_overdue_total",
			Help:      "Invoices moved to overdue by the sweep job.",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveBackup records one backup attempt. Safe on a nil receiver.
func (m *Metrics) ObserveBackup(reason string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(reason, result(err)).Inc()
	if err == nil {
		m.backupDuration.Observe(took.Seconds())
	}
}

// ObserveRestore records one restore attempt. Safe on a nil receiver.
func (m *Metrics) ObserveRestore(err error) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result(err)).Inc()
}

// AddOverdue counts invoices marked overdue. Safe on a nil receiver.
func (m *Metrics) AddOverdue(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}

// Middleware counts requests and their latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
