package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"gardenwatch/internal/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddlewarePropagates(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	r.Header.Set("X-Request-Id", "upstream-id")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-Id"))
}

func TestRecovererWritesStructured500(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected state")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeInternalUnexpected))
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	h := srv.SecurityHeadersMiddleware(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORSWildcard(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	r.Header.Set("Origin", "https://garden.example.com")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://garden.example.com"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
		r.Header.Set("Origin", "https://garden.example.com")

		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, "https://garden.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
		r.Header.Set("Origin", "https://evil.example.com")

		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSPreflight(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	r.Header.Set("Origin", "https://garden.example.com")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponseCaptureDefaultsTo200(t *testing.T) {
	rc := &responseCapture{ResponseWriter: httptest.NewRecorder()}

	_, err := rc.Write([]byte("ok"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rc.statusCode)
}

func TestResponseCaptureKeepsFirstStatus(t *testing.T) {
	rc := &responseCapture{ResponseWriter: httptest.NewRecorder()}

	rc.WriteHeader(http.StatusNotFound)
	rc.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusNotFound, rc.statusCode)
}
