package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_requests_created_total",
		Help: "The total number of instant-call requests created",
	})
	WorkersNotified = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "call_request_fanout_size",
		Help:    "Number of workers notified per request.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
	EstimatesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estimates_submitted_total",
		Help: "The total number of accepted estimate submissions",
	})
	RequestsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_requests_closed_total",
		Help: "The total number of requests closed, by outcome",
	}, []string{"outcome"})
	SelectionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selection_conflicts_total",
		Help: "Selections or cancellations that lost the race for a request",
	})
	LivePushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_pushes_total",
		Help: "Events handed to the live channel, by kind",
	}, []string{"kind"})
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_failures_total",
		Help: "Notification delivery failures, by path",
	}, []string{"path"})
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_connections",
		Help: "Currently open live channel connections",
	})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Latency of requests in second.",
	}, []string{"method", "pattern"})
)

// Middleware измеряет длительность обработки запросов по шаблону маршрута.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			httpDuration.WithLabelValues(r.Method, r.Pattern).Observe(v)
		}))
		next.ServeHTTP(w, r)
		timer.ObserveDuration()
	})
}
