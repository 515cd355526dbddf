package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

func TestHandler_ServeHTTP(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantCode   int
		wantStatus string
		wantChecks map[string]any
	}{
		{
			name:       "all up",
			checks:     map[string]Check{"mongo": ok, "redis": ok},
			wantCode:   http.StatusOK,
			wantStatus: "success",
			wantChecks: map[string]any{"mongo": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]Check{"mongo": ok, "redis": down},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
			wantChecks: map[string]any{"mongo": "ok", "redis": "down"},
		},
		{
			name:       "no checks",
			checks:     nil,
			wantCode:   http.StatusOK,
			wantStatus: "success",
			wantChecks: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			New(sl.Discard(), time.Second, tt.checks).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantChecks, body["data"].(map[string]any)["checks"])
		})
	}
}

func TestHandler_CheckTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	rr := httptest.NewRecorder()
	New(sl.Discard(), 10*time.Millisecond, map[string]Check{"amqp": slow}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
