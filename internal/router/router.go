package router

import (
	"net/http"

	"github.com/senyabanana/instant-call-service/internal/auth"
	"github.com/senyabanana/instant-call-service/internal/handlers"
	"github.com/senyabanana/instant-call-service/internal/live"
	"github.com/senyabanana/instant-call-service/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitRoutes(
	authenticator *auth.Authenticator,
	hub *live.Hub,
	requestHandler *handlers.RequestHandler,
	estimateHandler *handlers.EstimateHandler,
	notificationHandler *handlers.NotificationHandler,
) http.Handler {
	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		return authenticator.Middleware(h)
	}

	mux.HandleFunc("/api/ping", handlers.PingHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/live", hub.ServeWS)

	mux.Handle("POST /api/requests/new", protected(requestHandler.CreateRequest))
	mux.Handle("GET /api/requests/{requestId}", protected(requestHandler.GetRequest))
	mux.Handle("GET /api/requests/{requestId}/status", protected(requestHandler.GetRequestStatus))
	mux.Handle("/api/requests/{requestId}/cancel", protected(requestHandler.CancelRequest))
	mux.Handle("/api/requests/{requestId}/select", protected(requestHandler.SelectWinner))
	mux.Handle("POST /api/requests/{requestId}/estimates", protected(estimateHandler.SubmitEstimate))
	mux.Handle("GET /api/requests/{requestId}/estimates", protected(estimateHandler.ListEstimates))

	mux.Handle("/api/notifications", protected(notificationHandler.PullNotifications))
	mux.Handle("/api/notifications/{notificationId}/read", protected(notificationHandler.MarkRead))

	return metrics.Middleware(mux)
}
