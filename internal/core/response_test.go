package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardenwatch/internal/types"
)

func requestWithID(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(types.WithRequestID(r.Context(), "req-123"))
}

func TestJSONWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := requestWithID(t, http.MethodGet, "/api/alerts", "")

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"city": "Moscow"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]any{"city": "Moscow"}, resp.Data)
}

func TestErrorMapsAppErrorToStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"validation", types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{"auth", types.ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{"not found", types.ErrCodeNotFoundNotification, http.StatusNotFound},
		{"upstream timeout", types.ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{"upstream unavailable", types.ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{"internal db", types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := requestWithID(t, http.MethodGet, "/api/alerts", "")

			Error(w, r, types.NewAppError(tt.code, "boom", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp APIErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.code), resp.Error.Code)
			assert.Equal(t, "req-123", resp.Error.RequestID)
		})
	}
}

func TestErrorUnwrapsNestedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := requestWithID(t, http.MethodGet, "/api/weather", "")

	inner := types.NewAppError(types.ErrCodeUpstreamRateLimited, "provider throttled", nil)
	Error(w, r, errors.Join(errors.New("fetching weather"), inner))

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeUpstreamRateLimited), resp.Error.Code)
}

func TestErrorHidesGenericErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := requestWithID(t, http.MethodGet, "/api/alerts", "")

	Error(w, r, errors.New("pq: connection refused at 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.Equal(t, "an unexpected error occurred", resp.Error.Message)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", `{"latitude":55.75,"longitude":37.62}`)

		var p payload
		require.NoError(t, DecodeJSON(w, r, &p))
		assert.Equal(t, 55.75, p.Latitude)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", `{"latitude":`)

		err := DecodeJSON(w, r, &payload{})
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errCodeValidationInvalidJSON, appErr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", `{"lat":55.75}`)

		err := DecodeJSON(w, r, &payload{})
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Message, "unknown field")
	})

	t.Run("type mismatch carries field detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", `{"latitude":"north"}`)

		err := DecodeJSON(w, r, &payload{})
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "latitude", appErr.Details["field"])
	})

	t.Run("empty body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", "")

		err := DecodeJSON(w, r, &payload{})
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "request body must not be empty", appErr.Message)
	})

	t.Run("multiple JSON values", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := requestWithID(t, http.MethodPost, "/api/push/subscribe", `{"latitude":1}{"latitude":2}`)

		err := DecodeJSON(w, r, &payload{})
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "request body must contain a single JSON object", appErr.Message)
	})
}
