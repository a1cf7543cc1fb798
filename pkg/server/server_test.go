package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := New(":0", logger.NewNop())

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyChecks(t *testing.T) {
	healthy := New(":0", logger.NewNop(), WithReadyCheck("sheet", func(ctx context.Context) error { return nil }))
	rec := get(t, healthy.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	broken := New(":0", logger.NewNop(),
		WithReadyCheck("sheet", func(ctx context.Context) error { return nil }),
		WithReadyCheck("cache", func(ctx context.Context) error { return errors.New("redis down") }),
	)
	rec = get(t, broken.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Ready  bool              `json:"ready"`
		Failed map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, map[string]string{"cache": "redis down"}, body.Failed)
}

func TestJSONEndpoint(t *testing.T) {
	s := New(":0", logger.NewNop(),
		WithJSON("/leaderboard", func(ctx context.Context) (interface{}, error) {
			return map[string]interface{}{"success": true, "source": "remote"}, nil
		}),
		WithJSON("/status", func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("cache unreadable")
		}),
	)

	rec := get(t, s.Handler(), "/leaderboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success": true, "source": "remote"}`, rec.Body.String())

	rec = get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	post := httptest.NewRecorder()
	s.Handler().ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/leaderboard", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}
