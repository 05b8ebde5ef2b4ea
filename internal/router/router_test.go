package router

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/instant-call-service/internal/auth"
	"github.com/senyabanana/instant-call-service/internal/handlers"
	"github.com/senyabanana/instant-call-service/internal/live"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/notify"
	"github.com/senyabanana/instant-call-service/internal/repository/memory"
	"github.com/senyabanana/instant-call-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoutes(t *testing.T) http.Handler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	store := memory.NewStore()
	for _, user := range []string{"requester", "w1", "w2"} {
		store.AddSession(user+"-token", user, time.Now().Add(time.Hour))
	}
	store.SetAvailable("plumbing", "w1", true)
	store.SetAvailable("plumbing", "w2", true)

	authenticator := auth.NewAuthenticator(auth.NewTokenCache(store, time.Minute, 100), logger)
	hub := live.NewHub(authenticator, logger, 8)
	delivery := notify.NewDelivery(store, hub, logger)

	selection := services.NewSelectionService(store, store, store, delivery)
	return InitRoutes(
		authenticator,
		hub,
		handlers.NewRequestHandler(services.NewRequestService(store, store, store, delivery), selection, logger, time.Second),
		handlers.NewEstimateHandler(services.NewEstimateService(store, store, store, delivery), logger, time.Second),
		handlers.NewNotificationHandler(services.NewNotificationService(store, 50), logger, time.Second),
	)
}

func call(t *testing.T, routes http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPing(t *testing.T) {
	w := call(t, newTestRoutes(t), http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRoutesRequireToken(t *testing.T) {
	routes := newTestRoutes(t)
	for _, target := range []string{"/api/notifications", "/api/requests/r1", "/api/requests/r1/estimates"} {
		w := call(t, routes, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestInstantCallFlow(t *testing.T) {
	routes := newTestRoutes(t)

	w := call(t, routes, http.MethodPost, "/api/requests/new", "requester-token",
		`{"categoryId":"plumbing","description":"burst pipe","location":{"lat":41.3,"lng":69.2,"address":"Chilonzor 5"},"settlement":"card"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[models.CreatedRequest](t, w)
	assert.Equal(t, 2, created.NotifiedCount)
	assert.Equal(t, models.Card, created.Request.Settlement)
	requestPath := "/api/requests/" + created.Request.ID

	w = call(t, routes, http.MethodPost, requestPath+"/estimates", "w1-token", `{"price":150,"note":"in 20 minutes"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, routes, http.MethodPost, requestPath+"/estimates", "w2-token", `{"price":120}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, routes, http.MethodPost, requestPath+"/estimates", "w2-token", `{"price":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, routes, http.MethodGet, requestPath+"/estimates", "w1-token", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, routes, http.MethodGet, requestPath+"/estimates", "requester-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	estimates := decode[[]models.Estimate](t, w)
	require.Len(t, estimates, 2)
	assert.Equal(t, "w1", estimates[0].WorkerID)

	w = call(t, routes, http.MethodGet, "/api/notifications?kind=estimate.submitted", "requester-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Notification](t, w), 2)

	w = call(t, routes, http.MethodPut, requestPath+"/select?workerId=w1", "requester-token", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	selection := decode[models.Selection](t, w)
	assert.Equal(t, models.AssignedRequest, selection.Request.Status)
	assert.Equal(t, "w1", selection.Estimate.WorkerID)

	w = call(t, routes, http.MethodPut, requestPath+"/select?workerId=w2", "requester-token", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"reason":"request already assigned"}`, w.Body.String())

	w = call(t, routes, http.MethodPost, requestPath+"/estimates", "w2-token", `{"price":100}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"reason":"request no longer available"}`, w.Body.String())

	w = call(t, routes, http.MethodGet, requestPath+"/status", "w2-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AssignedRequest, decode[models.RequestStatus](t, w))

	w = call(t, routes, http.MethodGet, "/api/notifications?after=1", "w2-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	closed := decode[[]models.Notification](t, w)
	require.Len(t, closed, 1)
	assert.Equal(t, models.RequestClosedKind, closed[0].Kind)

	w = call(t, routes, http.MethodPut, "/api/notifications/"+closed[0].ID+"/read", "w2-token", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, routes, http.MethodPut, "/api/notifications/"+closed[0].ID+"/read", "w1-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelFlow(t *testing.T) {
	routes := newTestRoutes(t)

	w := call(t, routes, http.MethodPost, "/api/requests/new", "requester-token", `{"categoryId":"plumbing","description":"door lock"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[models.CreatedRequest](t, w)
	requestPath := "/api/requests/" + created.Request.ID

	w = call(t, routes, http.MethodPut, requestPath+"/cancel", "w1-token", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, routes, http.MethodPut, requestPath+"/cancel", "requester-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CancelledRequest, decode[models.Request](t, w).Status)

	w = call(t, routes, http.MethodGet, requestPath+"/cancel", "requester-token", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, routes, http.MethodGet, "/api/requests/missing", "requester-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRequestBadBody(t *testing.T) {
	routes := newTestRoutes(t)

	w := call(t, routes, http.MethodPost, "/api/requests/new", "requester-token", `{"categoryId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, routes, http.MethodPost, "/api/requests/new", "requester-token", `{"categoryId":"plumbing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid input")
}
