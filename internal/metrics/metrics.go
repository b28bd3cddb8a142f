package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the habit service.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec

	ReminderUsersEvaluated prometheus.Counter
	RemindersSent          prometheus.Counter
	ReminderSendFailures   prometheus.Counter
}

// New creates a new metrics instance registered on the default registry.
func New(serviceName string) *Metrics {
	return &Metrics{
		RequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chainhabit",
				Subsystem: serviceName,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "chainhabit",
				Subsystem: serviceName,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "chainhabit",
				Subsystem: serviceName,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method"},
		),
		ReminderUsersEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhabit",
			Subsystem: serviceName,
			Name:      "reminder_users_evaluated_total",
			Help:      "Users evaluated by the inactivity reminder scan",
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhabit",
			Subsystem: serviceName,
			Name:      "reminders_sent_total",
			Help:      "Inactivity reminder emails sent",
		}),
		ReminderSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhabit",
			Subsystem: serviceName,
			Name:      "reminder_send_failures_total",
			Help:      "Inactivity reminder emails that failed to send",
		}),
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware instruments HTTP requests with count, duration and in-flight gauges.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.WithLabelValues(r.Method).Inc()
		defer m.RequestsInFlight.WithLabelValues(r.Method).Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeTemplate labels by mux route template to keep cardinality bounded.
func routeTemplate(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tmpl, err := cur.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
