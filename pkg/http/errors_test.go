package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"bad request", func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "m") }, http.StatusBadRequest, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) { pkghttp.WriteUnauthorized(w, "m") }, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", func(w http.ResponseWriter) { pkghttp.WriteForbidden(w, "m") }, http.StatusForbidden, "forbidden"},
		{"unavailable", func(w http.ResponseWriter) { pkghttp.WriteServiceUnavailable(w, "m") }, http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "m") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.Code)
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error)
		})
	}
}

func TestWriteTooManyRequests_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteTooManyRequests(w, "slow down", 120)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "120", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	pkghttp.WriteTooManyRequests(w, "slow down", 0)
	assert.Empty(t, w.Header().Get("Retry-After"))
}
