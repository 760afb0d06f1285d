package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareSuite(t *testing.T) {
	fake := newFakeBackend()
	h := withCORS(newRouter(fake))

	t.Run("Health", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("Request ID Generated", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/health", "", nil)
		_, err := uuid.Parse(w.Header().Get(requestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("Request ID Echoed", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, id)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, id, w.Header().Get(requestIDHeader))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "not a uuid")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.NotEqual(t, "not a uuid", w.Header().Get(requestIDHeader))
	})

	t.Run("CORS Allowed Origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/me/profile", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})

	t.Run("CORS Disallowed Origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Websocket Origin Check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
		assert.True(t, originAllowed(req), "non-browser clients send no origin")
		req.Header.Set("Origin", "http://localhost:3001")
		assert.True(t, originAllowed(req))
		req.Header.Set("Origin", "http://evil.example")
		assert.False(t, originAllowed(req))
	})

	t.Run("Auth Rate Limit", func(t *testing.T) {
		limited := withCORS(newRouter(newFakeBackend()))
		creds := map[string]string{"username": "nobody", "password": "password123"}
		for i := 0; i < authRateLimit; i++ {
			w := doRequest(t, limited, http.MethodPost, "/login", "", creds)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		}
		w := doRequest(t, limited, http.MethodPost, "/login", "", creds)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"error":"rate_limited"}`, w.Body.String())

		w = doRequest(t, limited, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code, "other routes are not throttled")
	})

	t.Run("Metrics", func(t *testing.T) {
		doRequest(t, h, http.MethodGet, "/health", "", nil)
		doRequest(t, h, http.MethodGet, "/nowhere", "", nil)

		w := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.Contains(text, `affinity_http_requests_total{method="GET",route="/health",status="200"}`), text)
		assert.Contains(t, text, "affinity_http_request_duration_seconds")
	})
}
