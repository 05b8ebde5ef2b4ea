package auth

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenFromRequest(t *testing.T) {
	var tests = []struct {
		name     string
		header   string
		url      string
		expected string
	}{
		{"bearer header", "Bearer abc", "/api/ping", "abc"},
		{"query parameter", "", "/api/live?access_token=xyz", "xyz"},
		{"header wins", "Bearer abc", "/api/live?access_token=xyz", "abc"},
		{"other scheme", "Basic abc", "/api/ping", ""},
		{"nothing", "", "/api/ping", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.expected, TokenFromRequest(r), tt.name)
	}
}

func TestMiddleware(t *testing.T) {
	lookup := &fakeSessions{sessions: map[string]session{
		"t1": {userId: "alice", expiresAt: time.Now().Add(time.Hour)},
	}}
	authenticator := NewAuthenticator(NewTokenCache(lookup, time.Minute, 10), log.New(io.Discard, "", 0))

	var seen string
	handler := authenticator.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	r.Header.Set("Authorization", "Bearer t1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "alice", seen)

	for _, header := range []string{"", "Bearer nope"} {
		r := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "user is not authenticated")
	}
}
